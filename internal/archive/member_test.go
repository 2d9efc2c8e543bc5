package archive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMemberPath(t *testing.T) {
	tests := []struct {
		name    string
		member  string
		want    string
		wantErr string
	}{
		{name: "plain file", member: "project/a.txt", want: "project/a.txt"},
		{name: "leading dot segment", member: "./project/a.txt", want: "project/a.txt"},
		{name: "directory with slash", member: "project/", want: "project"},
		{name: "inner traversal that stays inside", member: "a/../b", want: "b"},
		{name: "dot segments", member: "a/./b/..", want: "a"},
		{name: "root entry", member: "./", want: "."},
		{name: "leading parent", member: "../evil", wantErr: "parent directory traversal"},
		{name: "bare parent", member: "..", wantErr: "parent directory traversal"},
		{name: "normalized escape", member: "a/../../b", wantErr: "parent directory traversal"},
		{name: "backslash parent", member: `..\evil`, wantErr: "parent directory traversal"},
		{name: "absolute", member: "/etc/passwd", wantErr: "absolute path"},
		{name: "backslash absolute", member: `\windows\system32`, wantErr: "absolute path"},
		{name: "drive letter", member: "C:/windows", wantErr: "absolute path"},
		{name: "backslash drive letter", member: `C:\windows`, wantErr: "absolute path"},
		{name: "bare drive", member: "c:", wantErr: "absolute path"},
		{name: "colon in relative name", member: "x:y.txt", want: "x:y.txt"},
		{name: "colon in nested name", member: "dir/a:b", want: "dir/a:b"},
		{name: "empty", member: "", wantErr: "empty name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateMemberPath(tt.member)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, ErrUnsafePath)
				assert.ErrorContains(t, err, tt.wantErr)

				var unsafe *UnsafePathError
				require.True(t, errors.As(err, &unsafe))
				assert.Equal(t, tt.member, unsafe.Member)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateLink(t *testing.T) {
	tests := []struct {
		name    string
		member  Member
		wantErr bool
	}{
		{
			name:   "sibling symlink",
			member: Member{Name: "a/link", Type: MemberSymlink, Linkname: "target"},
		},
		{
			name:   "symlink up one level stays inside",
			member: Member{Name: "a/link", Type: MemberSymlink, Linkname: "../b"},
		},
		{
			name:    "symlink escapes",
			member:  Member{Name: "a/link", Type: MemberSymlink, Linkname: "../../b"},
			wantErr: true,
		},
		{
			name:    "absolute symlink",
			member:  Member{Name: "link", Type: MemberSymlink, Linkname: "/etc/passwd"},
			wantErr: true,
		},
		{
			name:    "empty symlink target",
			member:  Member{Name: "link", Type: MemberSymlink},
			wantErr: true,
		},
		{
			name:    "symlink replacing the root",
			member:  Member{Name: ".", Type: MemberSymlink, Linkname: "sub"},
			wantErr: true,
		},
		{
			name:   "hardlink is relative to root",
			member: Member{Name: "a/b/c", Type: MemberHardlink, Linkname: "a/file"},
		},
		{
			name:    "hardlink escapes",
			member:  Member{Name: "a/b/c", Type: MemberHardlink, Linkname: "../file"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateLink(tt.member)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsafePath)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateMembers(t *testing.T) {
	t.Run("normalizes names in place", func(t *testing.T) {
		members := []Member{
			{Name: "./project/", Type: MemberDir},
			{Name: "project/a.txt", Type: MemberFile},
		}
		require.NoError(t, validateMembers("x.tar", members))
		assert.Equal(t, "project", members[0].Name)
		assert.Equal(t, "project/a.txt", members[1].Name)
	})

	t.Run("names archive and member", func(t *testing.T) {
		members := []Member{
			{Name: "ok.txt", Type: MemberFile},
			{Name: "../evil", Type: MemberFile},
		}
		err := validateMembers("x.tar", members)

		var unsafe *UnsafePathError
		require.True(t, errors.As(err, &unsafe))
		assert.Equal(t, "x.tar", unsafe.Archive)
		assert.Equal(t, "../evil", unsafe.Member)
		assert.ErrorContains(t, err, "x.tar")
	})

	t.Run("checks link targets", func(t *testing.T) {
		members := []Member{
			{Name: "link", Type: MemberSymlink, Linkname: "../outside"},
		}
		require.ErrorIs(t, validateMembers("x.tar", members), ErrUnsafePath)
	})
}

func TestValidateMembers_Symlinks(t *testing.T) {
	tests := []struct {
		name    string
		members []Member
		member  string
	}{
		{
			name: "link chain below a symlink",
			members: []Member{
				{Name: "a", Type: MemberSymlink, Linkname: "."},
				{Name: "a/b", Type: MemberSymlink, Linkname: ".."},
			},
			member: "a/b",
		},
		{
			name: "file below a symlink",
			members: []Member{
				{Name: "sub", Type: MemberDir},
				{Name: "link", Type: MemberSymlink, Linkname: "sub"},
				{Name: "link/x.txt", Type: MemberFile},
			},
			member: "link/x.txt",
		},
		{
			name: "symlink declared after the member below it",
			members: []Member{
				{Name: "./link/deep/x.txt", Type: MemberFile},
				{Name: "link", Type: MemberSymlink, Linkname: "sub"},
			},
			member: "link/deep/x.txt",
		},
		{
			name: "hardlink through a symlink",
			members: []Member{
				{Name: "link", Type: MemberSymlink, Linkname: "sub"},
				{Name: "copy", Type: MemberHardlink, Linkname: "link/secret"},
			},
			member: "copy",
		},
		{
			name: "hardlink to a symlink",
			members: []Member{
				{Name: "link", Type: MemberSymlink, Linkname: "sub"},
				{Name: "copy", Type: MemberHardlink, Linkname: "./link"},
			},
			member: "copy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMembers("x.tar", tt.members)
			require.ErrorIs(t, err, ErrUnsafePath)

			var unsafe *UnsafePathError
			require.ErrorAs(t, err, &unsafe)
			assert.Equal(t, tt.member, unsafe.Member)
			assert.Equal(t, "x.tar", unsafe.Archive)
		})
	}

	t.Run("names sharing a prefix are fine", func(t *testing.T) {
		members := []Member{
			{Name: "a", Type: MemberSymlink, Linkname: "ab"},
			{Name: "ab/x.txt", Type: MemberFile},
			{Name: "copy", Type: MemberHardlink, Linkname: "ab/x.txt"},
		}
		require.NoError(t, validateMembers("x.tar", members))
	})
}
