package file

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "extracts.txt")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReadList_Basic(t *testing.T) {
	t.Parallel()

	content := `
# yearly extracts
gs://foster-care/2001.tab
   # indented comment
https://example.org/afcars/2002.tab

   data/2003.tab
/abs/2004.tab
`
	path := writeTempFile(t, content)
	got, err := ReadList(path)
	if err != nil {
		t.Fatalf("ReadList: %v", err)
	}
	want := []string{
		"gs://foster-care/2001.tab",
		"https://example.org/afcars/2002.tab",
		filepath.Join(filepath.Dir(path), "data", "2003.tab"),
		"/abs/2004.tab",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ReadList (-want +got):\n%s", diff)
	}
}

func TestReadList_EmptyFile(t *testing.T) {
	t.Parallel()

	got, err := ReadList(writeTempFile(t, "\n# only comments\n"))
	if err != nil {
		t.Fatalf("ReadList: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v; want empty", got)
	}
}

func TestReadList_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := ReadList(filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v; want os.ErrNotExist", err)
	}
}
