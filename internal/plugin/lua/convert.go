// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package lua

import (
	"strconv"

	lua "github.com/yuin/gopher-lua"

	"github.com/wizardmod/wizard/pkg/wizard"
)

// Entities travel as decimal strings: Lua numbers cannot hold every uint64.

func entityValue(e wizard.Entity) lua.LString {
	return lua.LString(strconv.FormatUint(uint64(e), 10))
}

// entityField reads field as an entity, keeping fallback when it is
// missing or malformed.
func entityField(t *lua.LTable, field string, fallback wizard.Entity) wizard.Entity {
	switch v := t.RawGetString(field).(type) {
	case lua.LString:
		if n, err := strconv.ParseUint(string(v), 10, 64); err == nil {
			return wizard.Entity(n)
		}
	case lua.LNumber:
		if v >= 0 {
			return wizard.Entity(uint64(v))
		}
	}
	return fallback
}

func stringField(t *lua.LTable, field, fallback string) string {
	if v, ok := t.RawGetString(field).(lua.LString); ok {
		return string(v)
	}
	return fallback
}

func boolField(t *lua.LTable, field string, fallback bool) bool {
	if v, ok := t.RawGetString(field).(lua.LBool); ok {
		return bool(v)
	}
	return fallback
}

// toResult converts a hook return value. nil means Continue; numbers and
// names ("changed") are accepted. Anything else is out of range.
func toResult(v lua.LValue) wizard.Result {
	switch val := v.(type) {
	case *lua.LNilType:
		return wizard.Continue
	case lua.LNumber:
		if val < 0 || val > 255 || val != lua.LNumber(int(val)) {
			return wizard.Result(255)
		}
		return wizard.Result(int(val))
	case lua.LString:
		if r, ok := wizard.ParseResult(string(val)); ok {
			return r
		}
	}
	return wizard.Result(255)
}

// hookArgs marshals hook arguments into a Lua table and back.
type hookArgs interface {
	toTable(L *lua.LState) *lua.LTable
	fromTable(t *lua.LTable)
}

type levelArgs struct{ *wizard.LevelArgs }

func (a levelArgs) toTable(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("map_name", lua.LString(a.MapName))
	return t
}

func (a levelArgs) fromTable(t *lua.LTable) {
	a.MapName = stringField(t, "map_name", a.MapName)
}

type entityArgs struct{ *wizard.EntityArgs }

func (a entityArgs) toTable(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("entity", entityValue(a.Entity))
	t.RawSetString("class_name", lua.LString(a.ClassName))
	return t
}

func (a entityArgs) fromTable(t *lua.LTable) {
	a.Entity = entityField(t, "entity", a.Entity)
	a.ClassName = stringField(t, "class_name", a.ClassName)
}

type connectArgs struct{ *wizard.ConnectArgs }

func (a connectArgs) toTable(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("entity", entityValue(a.Entity))
	t.RawSetString("name", lua.LString(a.Name))
	t.RawSetString("address", lua.LString(a.Address))
	return t
}

func (a connectArgs) fromTable(t *lua.LTable) {
	a.Reject = stringField(t, "reject", a.Reject)
}

type clientArgs struct{ *wizard.ClientArgs }

func (a clientArgs) toTable(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("entity", entityValue(a.Entity))
	return t
}

func (a clientArgs) fromTable(t *lua.LTable) {
	a.Entity = entityField(t, "entity", a.Entity)
}

type putInServerArgs struct{ *wizard.PutInServerArgs }

func (a putInServerArgs) toTable(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("entity", entityValue(a.Entity))
	t.RawSetString("player_name", lua.LString(a.PlayerName))
	return t
}

func (a putInServerArgs) fromTable(t *lua.LTable) {
	a.Entity = entityField(t, "entity", a.Entity)
	a.PlayerName = stringField(t, "player_name", a.PlayerName)
}

type activeArgs struct{ *wizard.ActiveArgs }

func (a activeArgs) toTable(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("entity", entityValue(a.Entity))
	t.RawSetString("load", lua.LBool(a.Load))
	return t
}

func (a activeArgs) fromTable(t *lua.LTable) {
	a.Entity = entityField(t, "entity", a.Entity)
	a.Load = boolField(t, "load", a.Load)
}

type authArgs struct{ *wizard.AuthArgs }

func (a authArgs) toTable(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("entity", entityValue(a.Entity))
	t.RawSetString("auth_id", lua.LString(a.AuthID))
	return t
}

func (a authArgs) fromTable(t *lua.LTable) {
	a.Entity = entityField(t, "entity", a.Entity)
	a.AuthID = stringField(t, "auth_id", a.AuthID)
}

type commandArgs struct{ *wizard.CommandArgs }

func (a commandArgs) toTable(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("entity", entityValue(a.Entity))
	list := L.NewTable()
	for _, s := range a.Args {
		list.Append(lua.LString(s))
	}
	t.RawSetString("args", list)
	return t
}

func (a commandArgs) fromTable(t *lua.LTable) {
	a.Entity = entityField(t, "entity", a.Entity)
	list, ok := t.RawGetString("args").(*lua.LTable)
	if !ok {
		return
	}
	args := make([]string, 0, list.Len())
	for i := 1; i <= list.Len(); i++ {
		args = append(args, lua.LVAsString(list.RawGetInt(i)))
	}
	a.Args = args
}
