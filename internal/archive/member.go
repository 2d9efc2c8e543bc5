package archive

import (
	"errors"
	"io/fs"
	"path"
	"strings"
	"time"
)

// MemberType classifies archive members.
type MemberType string

const (
	MemberFile     MemberType = "file"
	MemberDir      MemberType = "dir"
	MemberSymlink  MemberType = "symlink"
	MemberHardlink MemberType = "hardlink"
	// MemberOther covers device nodes and FIFOs, which are never extracted.
	MemberOther MemberType = "other"
)

// Member is one validated entry of an archive.
type Member struct {
	// Name is the normalized, slash-separated path relative to the
	// extraction root.
	Name     string
	Type     MemberType
	Mode     fs.FileMode
	Size     int64
	Linkname string
	ModTime  time.Time
}

// ValidateMemberPath normalizes a member name and rejects names that are
// absolute or that still contain a ".." segment once cleaned. Backslashes are
// treated as separators. It returns the cleaned, slash-separated name.
func ValidateMemberPath(name string) (string, error) {
	if name == "" {
		return "", &UnsafePathError{Member: name, Reason: "empty name"}
	}
	normalized := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(normalized, "/") || hasVolume(normalized) {
		return "", &UnsafePathError{Member: name, Reason: "absolute path"}
	}
	cleaned := path.Clean(normalized)
	if escapes(cleaned) {
		return "", &UnsafePathError{Member: name, Reason: "parent directory traversal"}
	}
	return cleaned, nil
}

// validateLink checks that a link member's target stays inside the
// extraction root. Symlink targets are relative to the link's directory;
// hardlink targets are relative to the root.
func validateLink(m Member) error {
	target := strings.ReplaceAll(m.Linkname, `\`, "/")
	if target == "" {
		return &UnsafePathError{Member: m.Name, Reason: "empty link target"}
	}
	if strings.HasPrefix(target, "/") || hasVolume(target) {
		return &UnsafePathError{Member: m.Name, Reason: "absolute link target " + m.Linkname}
	}
	if m.Name == "." {
		return &UnsafePathError{Member: m.Name, Reason: "link replaces the destination directory"}
	}
	resolved := target
	if m.Type == MemberSymlink {
		resolved = path.Join(path.Dir(m.Name), target)
	}
	if escapes(path.Clean(resolved)) {
		return &UnsafePathError{Member: m.Name, Reason: "link target escapes destination: " + m.Linkname}
	}
	return nil
}

// validateMembers normalizes every member name in place and checks link
// targets. It runs over the complete member list before anything is
// extracted, so one unsafe member anywhere rejects the whole archive.
// No member may live below a symlink member of the same archive, since a
// chain of individually harmless links can point outside the destination.
func validateMembers(archivePath string, members []Member) error {
	symlinks := make(map[string]bool)
	for i := range members {
		cleaned, err := ValidateMemberPath(members[i].Name)
		if err != nil {
			return withArchive(err, archivePath)
		}
		members[i].Name = cleaned
		if members[i].Type == MemberSymlink {
			symlinks[cleaned] = true
		}
		if members[i].Type != MemberSymlink && members[i].Type != MemberHardlink {
			continue
		}
		if err := validateLink(members[i]); err != nil {
			return withArchive(err, archivePath)
		}
	}
	if len(symlinks) == 0 {
		return nil
	}

	for _, m := range members {
		if link, ok := belowSymlink(m.Name, symlinks); ok {
			return withArchive(&UnsafePathError{Member: m.Name, Reason: "path passes through symlink " + link}, archivePath)
		}
		if m.Type != MemberHardlink {
			continue
		}
		target := path.Clean(strings.ReplaceAll(m.Linkname, `\`, "/"))
		if symlinks[target] {
			return withArchive(&UnsafePathError{Member: m.Name, Reason: "hardlink target is a symlink: " + m.Linkname}, archivePath)
		}
		if link, ok := belowSymlink(target, symlinks); ok {
			return withArchive(&UnsafePathError{Member: m.Name, Reason: "hardlink target passes through symlink " + link}, archivePath)
		}
	}
	return nil
}

// belowSymlink reports the first proper parent of name that is in symlinks.
func belowSymlink(name string, symlinks map[string]bool) (string, bool) {
	for i := 0; i < len(name); i++ {
		if name[i] == '/' && symlinks[name[:i]] {
			return name[:i], true
		}
	}
	return "", false
}

func withArchive(err error, archivePath string) error {
	var unsafe *UnsafePathError
	if errors.As(err, &unsafe) {
		unsafe.Archive = archivePath
	}
	return err
}

func escapes(cleaned string) bool {
	return cleaned == ".." || strings.HasPrefix(cleaned, "../")
}

// hasVolume reports a drive letter prefix such as "C:" or "c:/". Names like
// "x:y.txt" are ordinary relative names.
func hasVolume(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	if !(p[0] >= 'a' && p[0] <= 'z') && !(p[0] >= 'A' && p[0] <= 'Z') {
		return false
	}
	return len(p) == 2 || p[2] == '/'
}
