package taxrag

import "testing"

func TestClassifyTaxKeywords(t *testing.T) {
	queries := []string{
		"რა არის დღგ-ს განაკვეთი საქართველოში?",
		"მუხლი 166 რას განსაზღვრავს?",
		"საგადასახადო კოდექსი საშემოსავლო გადასახადის შესახებ",
		"მოგების გადასახადის განაკვეთი რა არის?",
	}
	for _, q := range queries {
		if mode := Classify(q); mode != ModeTax {
			t.Errorf("Classify(%q) = %s, want tax", q, mode)
		}
	}
}

func TestClassifyDisputeKeywords(t *testing.T) {
	queries := []string{
		"დოკუმენტის # ТД-2023-100 შესახებ",
		"დავების საბჭოს გადაწყვეტილება",
		"ფინანსთა სამინისტროს დავის გადაწყვეტილება",
		"საჩივარი დავის საგნის შესახებ",
		"სადავო საკითხი დარიცხული თანხის შესახებ",
		"გასაჩივრებული გადაწყვეტილება და საბჭოს დასკვნა",
	}
	for _, q := range queries {
		if mode := Classify(q); mode != ModeDispute {
			t.Errorf("Classify(%q) = %s, want dispute", q, mode)
		}
	}
}

func TestClassifyDocumentKeywords(t *testing.T) {
	queries := []string{
		"ხელშეკრულების შაბლონი",
		"დოკუმენტის ნიმუში",
		"შაბლონი საგადასახადო დეკლარაციისთვის",
	}
	for _, q := range queries {
		if mode := Classify(q); mode != ModeDocument {
			t.Errorf("Classify(%q) = %s, want document", q, mode)
		}
	}
}

// Dispute vocabulary wins even when tax keywords outnumber it.
func TestClassifyDisputePriority(t *testing.T) {
	q := "დავის საგანი დღგ-ს განაკვეთის შესახებ მუხლი 166"
	if mode := Classify(q); mode != ModeDispute {
		t.Errorf("Classify(%q) = %s, want dispute", q, mode)
	}
}

func TestClassifyDefaultsToTax(t *testing.T) {
	queries := []string{
		"გამარჯობა",
		"რას ნიშნავს ეს?",
		"დამეხმარე გაგებაში",
		"",
	}
	for _, q := range queries {
		if mode := Classify(q); mode != ModeTax {
			t.Errorf("Classify(%q) = %s, want tax default", q, mode)
		}
	}
}

func TestMatchedKeywords(t *testing.T) {
	matched := matchedKeywords("დღგ-ს განაკვეთი მუხლი 166", taxKeywords)

	want := map[string]bool{"დღგ": true, "მუხლი": true, "განაკვეთი": true}
	for _, kw := range matched {
		delete(want, kw)
	}
	for kw := range want {
		t.Errorf("keyword %q not matched", kw)
	}
}

func TestMatchedKeywordsCaseInsensitive(t *testing.T) {
	if got := matchedKeywords("VAT RATE ARTICLE", []string{"article", "rate"}); len(got) != 2 {
		t.Errorf("case-insensitive match found %d keywords, want 2", len(got))
	}
}
