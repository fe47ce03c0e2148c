package lua

import (
	"reflect"
	"testing"

	glua "github.com/yuin/gopher-lua"
)

func TestToGoScalars(t *testing.T) {
	if got := ToGo(glua.LString("hi")); got != "hi" {
		t.Errorf("ToGo(string) = %v, want hi", got)
	}
	if got := ToGo(glua.LNumber(3)); got != int64(3) {
		t.Errorf("ToGo(3) = %v (%T), want int64(3)", got, got)
	}
	if got := ToGo(glua.LNumber(2.5)); got != 2.5 {
		t.Errorf("ToGo(2.5) = %v, want 2.5", got)
	}
	if got := ToGo(glua.LTrue); got != true {
		t.Errorf("ToGo(true) = %v, want true", got)
	}
	if got := ToGo(glua.LNil); got != nil {
		t.Errorf("ToGo(nil) = %v, want nil", got)
	}
	if got := ToGo(nil); got != nil {
		t.Errorf("ToGo(<nil>) = %v, want nil", got)
	}
}

func TestToGoArrayTable(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	tbl := L.NewTable()
	tbl.RawSetInt(1, glua.LString("a"))
	tbl.RawSetInt(2, glua.LString("b"))

	got := ToGo(tbl)
	want := []any{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToGo(array) = %v, want %v", got, want)
	}
}

func TestToGoMapTable(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	tbl := L.NewTable()
	tbl.RawSetString("x", glua.LNumber(1))
	tbl.RawSetString("y", glua.LString("z"))

	got, ok := ToGo(tbl).(map[string]any)
	if !ok {
		t.Fatalf("ToGo(map table) = %T, want map[string]any", ToGo(tbl))
	}
	if got["x"] != int64(1) || got["y"] != "z" {
		t.Errorf("ToGo(map table) = %v", got)
	}
}

func TestToGoCircularTable(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	tbl := L.NewTable()
	tbl.RawSetString("self", tbl)

	got, ok := ToGo(tbl).(map[string]any)
	if !ok {
		t.Fatal("ToGo(circular) should produce a map")
	}
	if got["self"] != nil {
		t.Errorf("ToGo(circular) self = %v, want nil", got["self"])
	}
}

func TestToGoFunctionDropped(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	fn := L.NewFunction(func(L *glua.LState) int { return 0 })
	if got := ToGo(fn); got != nil {
		t.Errorf("ToGo(function) = %v, want nil", got)
	}
}

func TestToLuaRoundTrip(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	in := map[string]any{
		"n":    int64(7),
		"s":    "txt",
		"flag": true,
		"list": []any{int64(1), int64(2)},
	}

	lv := ToLua(L, in)
	out, ok := ToGo(lv).(map[string]any)
	if !ok {
		t.Fatalf("round trip produced %T, want map", ToGo(lv))
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("round trip = %v, want %v", out, in)
	}
}

func TestToLuaUnknownType(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	type odd struct{ A int }
	lv := ToLua(L, odd{A: 1})
	if _, ok := lv.(glua.LString); !ok {
		t.Errorf("ToLua(struct) = %T, want string fallback", lv)
	}
}

func TestTableFromMapNil(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	tbl := TableFromMap(L, nil)
	if tbl == nil {
		t.Fatal("TableFromMap(nil) returned nil table")
	}
	if tbl.Len() != 0 {
		t.Errorf("TableFromMap(nil) Len = %d, want 0", tbl.Len())
	}
}
