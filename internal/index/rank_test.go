package index

import "testing"

func TestRank_ShorterDocWins(t *testing.T) {
	postings := map[string][]Posting{
		"go": {
			{Term: "go", LinkID: 1, Field: FieldTitle, Freq: 1, DocLen: 10},
			{Term: "go", LinkID: 2, Field: FieldTitle, Freq: 1, DocLen: 2},
		},
	}
	got := Rank(postings, Stats{Docs: 2, AvgDocLen: 6})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].LinkID != 2 {
		t.Errorf("first = %d, want 2 (shorter doc)", got[0].LinkID)
	}
}

func TestRank_MoreOverlapWins(t *testing.T) {
	postings := map[string][]Posting{
		"gh": {
			{Term: "github", LinkID: 1, Field: FieldLink, Freq: 1, DocLen: 4},
			{Term: "github", LinkID: 1, Field: FieldTitle, Freq: 1, DocLen: 4},
			{Term: "gh", LinkID: 2, Field: FieldText, Freq: 1, DocLen: 4},
		},
	}
	got := Rank(postings, Stats{Docs: 5, AvgDocLen: 4})
	if len(got) != 2 || got[0].LinkID != 1 {
		t.Fatalf("ranking = %+v, want link 1 first", got)
	}
}

func TestRank_TieBreaksByNewestID(t *testing.T) {
	postings := map[string][]Posting{
		"x": {
			{Term: "x", LinkID: 3, Field: FieldText, Freq: 1, DocLen: 1},
			{Term: "x", LinkID: 7, Field: FieldText, Freq: 1, DocLen: 1},
			{Term: "x", LinkID: 5, Field: FieldText, Freq: 1, DocLen: 1},
		},
	}
	got := Rank(postings, Stats{Docs: 3, AvgDocLen: 1})
	want := []int64{7, 5, 3}
	for i, id := range want {
		if got[i].LinkID != id {
			t.Fatalf("order = %+v, want %v", got, want)
		}
	}
}

func TestRank_RequiresEveryTerm(t *testing.T) {
	postings := map[string][]Posting{
		"foo": {
			{Term: "foo", LinkID: 1, Field: FieldText, Freq: 1, DocLen: 2},
			{Term: "foo", LinkID: 2, Field: FieldText, Freq: 1, DocLen: 2},
		},
		"bar": {
			{Term: "bar", LinkID: 2, Field: FieldText, Freq: 1, DocLen: 2},
		},
	}
	got := Rank(postings, Stats{Docs: 2, AvgDocLen: 2})
	if len(got) != 1 || got[0].LinkID != 2 {
		t.Errorf("ranking = %+v, want only link 2", got)
	}
}

func TestRank_Empty(t *testing.T) {
	if got := Rank(map[string][]Posting{}, Stats{}); len(got) != 0 {
		t.Errorf("ranking = %+v, want empty", got)
	}
}

func TestComputeIDF_NeverNegative(t *testing.T) {
	if idf := computeIDF(1, 3); idf <= 0 {
		t.Errorf("idf = %f, want > 0 when docFreq exceeds stale total", idf)
	}
	if idf := computeIDF(4, 4); idf <= 0 {
		t.Errorf("idf = %f, want > 0 when every doc matches", idf)
	}
}
