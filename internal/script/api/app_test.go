package api

import (
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	glua "github.com/yuin/gopher-lua"
)

// fakeStore records calls and fails on demand.
type fakeStore struct {
	texts   map[string]string
	appends []string
	jsonKey string
	jsonVal any
	fail    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{texts: make(map[string]string)}
}

func (f *fakeStore) ReadText(path string) (string, bool) {
	text, ok := f.texts[path]
	return text, ok
}

func (f *fakeStore) WriteText(path, text string) error {
	if f.fail != nil {
		return f.fail
	}
	f.texts[path] = text
	return nil
}

func (f *fakeStore) AppendText(path, text string) error {
	if f.fail != nil {
		return f.fail
	}
	f.appends = append(f.appends, path+"="+text)
	return nil
}

func (f *fakeStore) WriteJSON(path, raw string) error {
	if f.fail != nil {
		return f.fail
	}
	f.texts[path] = raw
	return nil
}

func (f *fakeStore) UpdateJSON(path, key string, value any) error {
	if f.fail != nil {
		return f.fail
	}
	f.jsonKey = key
	f.jsonVal = value
	return nil
}

func newAppState(t *testing.T, files FileStore) *glua.LState {
	t.Helper()
	log, _ := test.NewNullLogger()
	L := glua.NewState()
	t.Cleanup(L.Close)

	if err := NewAppModule(files, log).Register(L); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return L
}

func TestAppReadText(t *testing.T) {
	files := newFakeStore()
	files.texts["/tmp/x"] = "payload"
	L := newAppState(t, files)

	if err := L.DoString(`r = App.ReadText("/tmp/x")`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if got := L.GetGlobal("r"); got != glua.LString("payload") {
		t.Errorf("ReadText result = %v, want payload", got)
	}
}

func TestAppReadTextMissingIsNil(t *testing.T) {
	L := newAppState(t, newFakeStore())

	if err := L.DoString(`r = App.ReadText("/tmp/absent")`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if got := L.GetGlobal("r"); got != glua.LNil {
		t.Errorf("ReadText(absent) = %v, want nil", got)
	}
}

func TestAppWriteText(t *testing.T) {
	files := newFakeStore()
	L := newAppState(t, files)

	if err := L.DoString(`App.WriteText("/tmp/out", "data")`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if files.texts["/tmp/out"] != "data" {
		t.Errorf("WriteText stored %q, want data", files.texts["/tmp/out"])
	}
}

func TestAppWriteTextFailureIsGuestError(t *testing.T) {
	files := newFakeStore()
	files.fail = errors.New("disk full")
	L := newAppState(t, files)

	err := L.DoString(`App.WriteText("/tmp/out", "data")`)
	if err == nil {
		t.Fatal("DoString() should fail when the store fails")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("error = %v, want store failure surfaced", err)
	}

	// The failure stays inside the guest's protected call.
	if err := L.DoString(`pcall(function() App.WriteText("/tmp/out", "data") end)`); err != nil {
		t.Errorf("pcall-wrapped failure escaped: %v", err)
	}
}

func TestAppAppendText(t *testing.T) {
	files := newFakeStore()
	L := newAppState(t, files)

	if err := L.DoString(`App.AppendText("/tmp/log", "line")`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if len(files.appends) != 1 || files.appends[0] != "/tmp/log=line" {
		t.Errorf("AppendText calls = %v", files.appends)
	}
}

func TestAppWriteJson(t *testing.T) {
	files := newFakeStore()
	L := newAppState(t, files)

	if err := L.DoString(`App.WriteJson("/tmp/d.json", '{"a":1}')`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if files.texts["/tmp/d.json"] != `{"a":1}` {
		t.Errorf("WriteJson stored %q", files.texts["/tmp/d.json"])
	}
}

func TestAppUpdateJson(t *testing.T) {
	files := newFakeStore()
	L := newAppState(t, files)

	if err := L.DoString(`App.UpdateJson("/tmp/d.json", "count", 5)`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if files.jsonKey != "count" {
		t.Errorf("UpdateJson key = %q, want count", files.jsonKey)
	}
	if files.jsonVal != int64(5) {
		t.Errorf("UpdateJson value = %v (%T), want int64(5)", files.jsonVal, files.jsonVal)
	}
}
