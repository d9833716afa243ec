package selecter

import (
	"reflect"
	"strings"
	"testing"
)

func TestSelect_KeepsOnlyHousingParagraphInOrder(t *testing.T) {
	text := "Council approved funding for 40 units of affordable housing on Elm St.\n\n" +
		"Staff presented the downtown parking study."
	ex := Select(text, Options{})
	if len(ex.Paragraphs) != 1 {
		t.Fatalf("expected 1 paragraph, got %d: %q", len(ex.Paragraphs), ex.Paragraphs)
	}
	if !strings.Contains(ex.Paragraphs[0], "affordable housing") {
		t.Fatalf("unexpected paragraph %q", ex.Paragraphs[0])
	}
}

func TestSelect_PreservesOriginalOrder(t *testing.T) {
	text := "Zoning variance for 12 Oak Ave.\n\nBudget item.\n\nTenant protections ordinance first reading.\n\nRental registry fees."
	ex := Select(text, Options{})
	want := []string{"Zoning variance for 12 Oak Ave.", "Tenant protections ordinance first reading.", "Rental registry fees."}
	if !reflect.DeepEqual(ex.Paragraphs, want) {
		t.Fatalf("got %q want %q", ex.Paragraphs, want)
	}
}

func TestSelect_Idempotent(t *testing.T) {
	text := "Housing element update.\n\nParks.\n\nEviction moratorium extended."
	a := Select(text, Options{MaxChars: 50})
	b := Select(text, Options{MaxChars: 50})
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("selection not deterministic: %q vs %q", a.Paragraphs, b.Paragraphs)
	}
}

func TestSelect_BudgetNeverExceeded(t *testing.T) {
	para := strings.Repeat("housing ", 10) // 80 runes before trim
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString(para)
		b.WriteString("\n\n")
	}
	for _, budget := range []int{1, 79, 80, 200, 1000} {
		ex := Select(b.String(), Options{MaxChars: budget})
		if ex.Len() > budget {
			t.Fatalf("budget %d exceeded: %d", budget, ex.Len())
		}
	}
}

func TestSelect_StopsAtFirstOverBudgetParagraph(t *testing.T) {
	text := "housing a\n\nhousing " + strings.Repeat("b", 100) + "\n\nhousing c"
	ex := Select(text, Options{MaxChars: 30})
	// The short third paragraph would fit, but selection halts at the second.
	if !reflect.DeepEqual(ex.Paragraphs, []string{"housing a"}) {
		t.Fatalf("got %q", ex.Paragraphs)
	}
}

func TestSelect_NoMatchIsEmpty(t *testing.T) {
	ex := Select("Roll call.\n\nAdjourned at 9:14 pm.", Options{})
	if !ex.Empty() || ex.Text() != "" {
		t.Fatalf("expected empty excerpt, got %q", ex.Paragraphs)
	}
	if !Select("", Options{}).Empty() {
		t.Fatalf("expected empty excerpt for empty text")
	}
}

func TestSelect_CustomKeywordsCaseInsensitive(t *testing.T) {
	ex := Select("BIKE LANES on Main.\n\nHousing.", Options{Keywords: []string{" Bike "}})
	if !reflect.DeepEqual(ex.Paragraphs, []string{"BIKE LANES on Main."}) {
		t.Fatalf("got %q", ex.Paragraphs)
	}
}

func TestParagraphs_SplitsOnWhitespaceOnlyLines(t *testing.T) {
	got := Paragraphs("  a\nb  \r\n \t \r\nc\n\n\n\nd  ")
	want := []string{"a\nb", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestKeywordsFor(t *testing.T) {
	got := KeywordsFor("Housing", []string{"housing", "ADU ", "", "zoning"})
	want := []string{"housing", "adu", "zoning"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}
}
