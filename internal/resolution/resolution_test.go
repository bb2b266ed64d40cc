package resolution

import "testing"

func TestTable_LookupCaseInsensitive(t *testing.T) {
	table := NewTable()
	err := table.LoadBytes([]byte(`{"resolutions":{"Plugin.Method":{"alias":"X"}}}`))
	if err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}

	for _, method := range []string{"plugin.method", "PLUGIN.METHOD", "Plugin.Method"} {
		entry, ok := table.Lookup(method)
		if !ok {
			t.Fatalf("expected lookup of %q to succeed", method)
		}
		if entry.Alias != "X" {
			t.Errorf("expected alias X, got %q", entry.Alias)
		}
	}
}

func TestTable_LastWinsOnReload(t *testing.T) {
	table := NewTable()
	if err := table.LoadBytes([]byte(`{"resolutions":{"MiXeDCaSe.Method":{"alias":"A"}}}`)); err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	if err := table.LoadBytes([]byte(`{"resolutions":{"mixedcase.method":{"alias":"B"}}}`)); err != nil {
		t.Fatalf("second load failed: %v", err)
	}

	entry, ok := table.Lookup("MIXEDCASE.METHOD")
	if !ok {
		t.Fatal("expected entry present")
	}
	if entry.Alias != "B" {
		t.Errorf("expected last-wins alias B, got %q", entry.Alias)
	}
}

func TestTable_UnknownMethodAbsent(t *testing.T) {
	table := NewTable()
	if _, ok := table.Lookup("nope"); ok {
		t.Error("expected absent sentinel for unknown method")
	}
}

func TestTable_EventAndComRpcClassification(t *testing.T) {
	table := NewTable()
	err := table.LoadBytes([]byte(`{"resolutions":{
		"event.method":{"alias":"X","event":"E"},
		"comrpc.method":{"alias":"Y","useComRpc":true},
		"plain.method":{"alias":"Z"}
	}}`))
	if err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}

	if !table.HasEvent("event.method") {
		t.Error("expected event.method to be classified as event")
	}
	if table.HasEvent("plain.method") {
		t.Error("expected plain.method to not be an event")
	}
	if !table.HasComRpcRequestSupport("comrpc.method") {
		t.Error("expected comrpc.method to support ComRpc")
	}
	if table.HasComRpcRequestSupport("plain.method") {
		t.Error("expected plain.method to not support ComRpc")
	}
}

func TestTable_IsConfiguredOnlyAfterSuccess(t *testing.T) {
	table := NewTable()
	if table.IsConfigured() {
		t.Error("expected unconfigured table before any load")
	}

	if err := table.LoadBytes([]byte(`{"resolutions":{"a.b":{"alias":"X"}}}`)); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !table.IsConfigured() {
		t.Error("expected configured table after successful load")
	}
}

func TestTable_InvalidEntrySkipped(t *testing.T) {
	table := NewTable()
	err := table.LoadBytes([]byte(`{"resolutions":{"bad.method":{"alias":""},"good.method":{"alias":"X"}}}`))
	if err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}

	if _, ok := table.Lookup("bad.method"); ok {
		t.Error("expected entry with empty alias to be skipped")
	}
	if _, ok := table.Lookup("good.method"); !ok {
		t.Error("expected good.method to load")
	}
}
