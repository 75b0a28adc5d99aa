package diag

import "testing"

func TestBagLimit(t *testing.T) {
	b := NewBag(2)
	if !b.Add(Diagnostic{Code: ResInfo, Message: "one"}) {
		t.Fatal("first add rejected")
	}
	if !b.Add(Diagnostic{Code: ResInfo, Message: "two"}) {
		t.Fatal("second add rejected")
	}
	if b.Add(Diagnostic{Code: ResInfo, Message: "three"}) {
		t.Fatal("add over limit accepted")
	}
	if b.Len() != 2 {
		t.Fatalf("Len = %d, want 2", b.Len())
	}
}

func TestBagSortAndDedup(t *testing.T) {
	b := NewBag(10)
	b.Add(Diagnostic{Severity: SevInfo, Code: LinkSystemLibrary, Subject: "zlib", Message: "m"})
	b.Add(Diagnostic{Severity: SevWarning, Code: PkgParentCorrected, Subject: "a", Message: "m"})
	b.Add(Diagnostic{Severity: SevInfo, Code: LinkSystemLibrary, Subject: "zlib", Message: "m"})
	b.Sort()
	b.Dedup()
	if b.Len() != 2 {
		t.Fatalf("Len = %d, want 2", b.Len())
	}
	if b.Items()[0].Subject != "a" {
		t.Errorf("first subject = %q, want a", b.Items()[0].Subject)
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(10)
	r := NewDedupReporter(BagReporter{Bag: bag})
	r.Report(PkgDunderFile, SevWarning, "foo", "contains __file__")
	r.Report(PkgDunderFile, SevWarning, "foo", "contains __file__")
	r.Report(PkgDunderFile, SevWarning, "bar", "contains __file__")
	if bag.Len() != 2 {
		t.Fatalf("Len = %d, want 2", bag.Len())
	}
}
