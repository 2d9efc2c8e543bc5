package runner

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildVariables(t *testing.T) {
	now := time.Date(2024, 3, 9, 8, 7, 6, 0, time.FixedZone("CET", 3600))

	t.Run("built-in variables are set", func(t *testing.T) {
		variables, err := BuildVariables(now, nil)
		require.NoError(t, err)

		assert.Equal(t, "20240309T070706Z", variables["DATE_ISO8601"])
		assert.Equal(t, "2024-03-09T07:07:06Z", variables["DATE_RFC3339"])
		assert.Len(t, variables, 2)
	})

	t.Run("allowed env variables are included", func(t *testing.T) {
		t.Setenv("VAR1", "value1")
		t.Setenv("VAR2", "value2")

		variables, err := BuildVariables(now, []string{"VAR1", "VAR2"})
		require.NoError(t, err)

		assert.Equal(t, "value1", variables["VAR1"])
		assert.Equal(t, "value2", variables["VAR2"])
	})

	t.Run("error accumulates for missing env variables", func(t *testing.T) {
		_, err := BuildVariables(now, []string{"PACKSHIP_MISSING1", "PACKSHIP_MISSING2"})
		require.Error(t, err)
		assert.ErrorContains(t, err, `"PACKSHIP_MISSING1" is not set`)
		assert.ErrorContains(t, err, `"PACKSHIP_MISSING2" is not set`)
	})
}

func TestExpand(t *testing.T) {
	vars := map[string]string{"ENV": "prod", "REGION": "eu"}

	got, err := Expand("drops/${ENV}/$REGION", vars)
	require.NoError(t, err)
	assert.Equal(t, "drops/prod/eu", got)

	got, err = Expand("no references", vars)
	require.NoError(t, err)
	assert.Equal(t, "no references", got)

	_, err = Expand("${SECRET}", vars)
	require.Error(t, err)
	assert.ErrorContains(t, err, `"SECRET" is not in the allowed list`)
}

func TestExpandTemplates_String(t *testing.T) {
	type S struct {
		Path string `template:""`
	}
	in := S{Path: "${ENV}/data"}
	require.NoError(t, ExpandTemplates(&in, map[string]string{"ENV": "prod"}))
	assert.Equal(t, S{Path: "prod/data"}, in)
}

func TestExpandTemplates_UntaggedAndSkipped(t *testing.T) {
	type S struct {
		Raw     string
		Skipped string `template:"-"`
	}
	in := S{Raw: "${ENV}", Skipped: "${ENV}"}
	require.NoError(t, ExpandTemplates(&in, map[string]string{}))
	assert.Equal(t, S{Raw: "${ENV}", Skipped: "${ENV}"}, in)
}

func TestExpandTemplates_PtrString(t *testing.T) {
	type S struct {
		Path *string `template:""`
		Nil  *string `template:""`
	}
	shared := "${ENV}"
	in := S{Path: &shared}
	require.NoError(t, ExpandTemplates(&in, map[string]string{"ENV": "prod"}))

	require.NotNil(t, in.Path)
	assert.Equal(t, "prod", *in.Path)
	assert.Equal(t, "${ENV}", shared, "the original string is not modified")
	assert.Nil(t, in.Nil)
}

func TestExpandTemplates_Nested(t *testing.T) {
	type Inner struct {
		Path string `template:""`
	}
	type Outer struct {
		Value  Inner
		Ptr    *Inner
		NilPtr *Inner
		List   []Inner
	}
	in := Outer{
		Value: Inner{Path: "${X}"},
		Ptr:   &Inner{Path: "${X}/ptr"},
		List:  []Inner{{Path: "${X}/0"}, {Path: "${X}/1"}},
	}
	require.NoError(t, ExpandTemplates(&in, map[string]string{"X": "x"}))

	assert.Equal(t, "x", in.Value.Path)
	assert.Equal(t, "x/ptr", in.Ptr.Path)
	assert.Nil(t, in.NilPtr)
	assert.Equal(t, []string{"x/0", "x/1"}, lo.Map(in.List, func(i Inner, _ int) string { return i.Path }))
}

func TestExpandTemplates_ErrorNamesField(t *testing.T) {
	type S struct {
		Bucket string `template:""`
	}
	in := S{Bucket: "${NOPE}"}
	err := ExpandTemplates(&in, map[string]string{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "field Bucket")
}

func TestExpandTemplates_Nil(t *testing.T) {
	type S struct{}
	var in *S
	require.NoError(t, ExpandTemplates(in, nil))
}
