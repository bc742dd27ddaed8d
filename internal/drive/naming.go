package drive

import (
	"fmt"
	"strings"

	"github.com/alexjbarnes/filedrive/internal/errors"
	"golang.org/x/text/unicode/norm"
)

// RootScope is the reserved scope key for files that live outside any
// folder. It is never a legal folder name.
const RootScope = "__root__"

// NormalizeName returns the NFC form of a name. All uniqueness checks
// operate on normalized names so composed and decomposed spellings of
// the same name collide instead of silently coexisting.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// ValidateName rejects names that must never reach the store: empty or
// whitespace-only names, and the reserved root scope key.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.ErrEmptyName
	}

	if NormalizeName(name) == RootScope {
		return errors.ErrReservedName
	}

	return nil
}

// NameSet builds a normalized membership set from a list of names.
func NameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[NormalizeName(n)] = struct{}{}
	}

	return set
}

// UniqueFileName returns candidate unchanged when it is not in used,
// otherwise the first "base(n).ext" (counter from 1) that is free. The
// caller must pass the complete set of names visible in the target scope,
// committed and staged alike; the result is guaranteed disjoint from it.
// Termination is guaranteed because used is finite.
func UniqueFileName(candidate string, used map[string]struct{}) string {
	candidate = NormalizeName(candidate)
	if _, taken := used[candidate]; !taken {
		return candidate
	}

	base, ext := splitExt(candidate)

	for n := 1; ; n++ {
		next := fmt.Sprintf("%s(%d)%s", base, n, ext)
		if _, taken := used[next]; !taken {
			return next
		}
	}
}

// UniqueFolderName is UniqueFileName without the extension handling:
// folder names have no extension concept, so the counter is appended to
// the whole name ("docs" -> "docs(1)", "v1.0" -> "v1.0(1)").
func UniqueFolderName(candidate string, used map[string]struct{}) string {
	candidate = NormalizeName(candidate)
	if _, taken := used[candidate]; !taken {
		return candidate
	}

	for n := 1; ; n++ {
		next := fmt.Sprintf("%s(%d)", candidate, n)
		if _, taken := used[next]; !taken {
			return next
		}
	}
}

// splitExt splits a file name at the last dot. Names without a dot have
// an empty extension; the dot stays with the extension.
func splitExt(name string) (base, ext string) {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return name, ""
	}

	return name[:idx], name[idx:]
}
