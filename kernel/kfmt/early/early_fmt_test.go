package early

import "testing"

func TestPrintf(t *testing.T) {
	specs := []struct {
		format string
		args   []interface{}
		exp    string
	}{
		{"no verbs here", nil, "no verbs here"},
		{"%s", []interface{}{"hi"}, "hi"},
		{"%5s", []interface{}{"hi"}, "   hi"},
		{"%d", []interface{}{42}, "42"},
		{"%5d", []interface{}{42}, "   42"},
		{"%d", []interface{}{-7}, "-7"},
		{"%o", []interface{}{8}, "10"},
		{"%x", []interface{}{255}, "0xff"},
		{"%t", []interface{}{true}, "true"},
		{"%t", []interface{}{false}, "false"},
		{"%%", nil, "%"},
		{"%s", nil, "(MISSING)"},
		{"%d", []interface{}{"not an int"}, "%!(WRONGTYPE)"},
		{"no verb %", nil, "no verb %!(NOVERB)"},
		{"%s extra", []interface{}{"a", "b"}, "a extra%!(EXTRA)"},
	}

	for _, spec := range specs {
		sink := NewRingSink(64)
		SetSink(sink)
		Printf(spec.format, spec.args...)
		if got := sink.String(); got != spec.exp {
			t.Errorf("Printf(%q, %v): expected %q; got %q", spec.format, spec.args, spec.exp, got)
		}
	}

	SetSink(nil)
}

func TestRingSinkWraps(t *testing.T) {
	sink := NewRingSink(4)
	sink.Write([]byte("abcdef"))
	if got, exp := sink.String(), "cdef"; got != exp {
		t.Fatalf("expected ring sink to retain last %d bytes %q; got %q", 4, exp, got)
	}
}
