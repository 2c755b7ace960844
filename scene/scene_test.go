package scene

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeLog writes lines to path, one per line.
func writeLog(t *testing.T, path string, lines []string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
}

func TestParse_Tab(t *testing.T) {
	in := "10\t1\t1.5\t2.5\n\n10\t2\t3\t4\n20\t1\t1.75\t2.5\n"
	obs, err := Parse(strings.NewReader(in), "tab")
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, Observation{Frame: 20, AgentID: 1, X: 1.75, Y: 2.5}, obs[2])
}

func TestParse_SpaceCollapsesRuns(t *testing.T) {
	obs, err := Parse(strings.NewReader("1  2   3.0 4.0\n"), "space")
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 3.0, obs[0].X)
	assert.Equal(t, 4.0, obs[0].Y)
}

func TestParse_Malformed(t *testing.T) {
	cases := map[string]string{
		"non-numeric": "1\t2\tabc\t4\n",
		"too short":   "1\t2\t3\n",
		"empty field": "1\t\t3\t4\n",
		"extra field": "1\t2\t3\t4\t5\n",
		"nan agent":   "0\tNaN\t1\t1\n1\tNaN\t1\t1\n",
		"inf coord":   "0\t1\t+Inf\t1\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(in), "\t")
			require.ErrorIs(t, err, ErrMalformedLine)
		})
	}
}

func TestFromObservations_SortsFrames(t *testing.T) {
	obs := []Observation{
		{Frame: 30, AgentID: 1},
		{Frame: 10, AgentID: 1},
		{Frame: 30, AgentID: 2},
		{Frame: 20, AgentID: 1},
	}
	s := FromObservations("s", obs)
	require.Equal(t, 3, s.NumFrames())
	for i, id := range []float64{10, 20, 30} {
		assert.Equal(t, id, s.Frames[i].ID, "frame %d", i)
	}
	require.Len(t, s.Frames[2].Obs, 2)
	assert.Equal(t, 1.0, s.Frames[2].Obs[0].AgentID)
	assert.Equal(t, 2.0, s.Frames[2].Obs[1].AgentID)
}

func TestLoadDir_SkipsNamedFiles(t *testing.T) {
	tmp := t.TempDir()
	writeLog(t, filepath.Join(tmp, "b.txt"), []string{"1\t1\t0\t0"})
	writeLog(t, filepath.Join(tmp, "a.txt"), []string{"1\t1\t0\t0", "2\t1\t1\t0"})
	// not a log; parsing it would fail
	writeLog(t, filepath.Join(tmp, "graph_data.dat"), []string{"binary"})

	scenes, err := LoadDir(tmp, "tab", "graph_data.dat")
	require.NoError(t, err)
	require.Len(t, scenes, 2)
	assert.Equal(t, "a.txt", scenes[0].Name)
	assert.Equal(t, 2, scenes[0].NumFrames())
}

func TestLoadDir_MalformedFails(t *testing.T) {
	tmp := t.TempDir()
	writeLog(t, filepath.Join(tmp, "a.txt"), []string{"1\t1\t0\t0", "oops"})
	_, err := LoadDir(tmp, "tab")
	require.ErrorIs(t, err, ErrMalformedLine)
}

func TestLoadDir_Empty(t *testing.T) {
	_, err := LoadDir(t.TempDir(), "tab")
	require.Error(t, err)
}
