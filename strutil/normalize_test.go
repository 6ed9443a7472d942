package strutil

import (
	"reflect"
	"testing"
)

func TestNormalizeFieldsDropsEmpty(t *testing.T) {
	got := NormalizeFields([]string{" 5nn ", "", "  ", "05"})
	want := []string{"5NN", "05"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeFields = %v, want %v", got, want)
	}
	if NormalizeFields([]string{" "}) != nil {
		t.Fatalf("expected nil when every field is blank")
	}
}

func TestSplitFieldsHandlesCommas(t *testing.T) {
	got := SplitFields("joe,  123 ")
	want := []string{"JOE", "123"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitFields = %v, want %v", got, want)
	}
}
