package drive

import (
	"context"
	"fmt"

	"github.com/alexjbarnes/filedrive/internal/store"
	"golang.org/x/sync/errgroup"
)

// BuildFolderMap fetches the folders and root-files collections
// concurrently and reduces them into a fresh unified map. The root key
// is always present, even when the store holds no root files; embedded
// nil file lists become empty slices. There is no incremental update
// path: consistency comes from rebuilding wholesale.
func BuildFolderMap(ctx context.Context, st Store) (FolderMap, error) {
	var (
		folders []store.Folder
		files   []store.File
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		folders, err = st.ListFolders(gctx)

		return err
	})

	g.Go(func() error {
		var err error

		files, err = st.ListFiles(gctx)

		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching collections: %w", err)
	}

	m := make(FolderMap, len(folders)+1)

	for _, folder := range folders {
		if folder.Files == nil {
			m[folder.Name] = []store.File{}
			continue
		}

		m[folder.Name] = folder.Files
	}

	if files == nil {
		files = []store.File{}
	}

	m[RootScope] = files

	return m, nil
}
