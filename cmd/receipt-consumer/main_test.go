package main

import (
	"reflect"
	"testing"
)

func TestParseTypes(t *testing.T) {
	cases := map[string][]string{
		"boleta,factura":    {"boleta", "factura"},
		" Factura ":         {"factura"},
		"boleta,,boleta":    {"boleta"},
		"factura, boleta ,": {"factura", "boleta"},
	}

	for raw, want := range cases {
		got, err := parseTypes(raw)
		if err != nil {
			t.Fatalf("parseTypes(%q): %v", raw, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("parseTypes(%q): Expected %v, got %v", raw, want, got)
		}
	}
}

func TestParseTypesRejects(t *testing.T) {
	for _, raw := range []string{"", " , ", "ticket", "boleta,nota"} {
		if _, err := parseTypes(raw); err == nil {
			t.Errorf("parseTypes(%q): Expected error, got nil", raw)
		}
	}
}
