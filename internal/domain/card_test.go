package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" go ", "math", "", "go", "algorithms"})
	want := []string{"algorithms", "go", "math"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, but got %v", want, got)
	}
	if got := NormalizeTags(nil); len(got) != 0 {
		t.Errorf("Expected no tags, but got %v", got)
	}
}

func TestCardJSONRoundTrip(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 30, 0, 123000000, time.UTC)
	last := created.Add(36 * time.Hour)
	src := int64(7)
	content, err := NewFact("Capital of France?", "Paris")
	if err != nil {
		t.Fatalf("NewFact: %v", err)
	}
	card := Card{
		ID:            "c1",
		Content:       content,
		Tags:          []string{"geo"},
		CreatedAt:     created,
		Hash:          "abc",
		SourceID:      &src,
		State:         Review,
		Stability:     3.5,
		Difficulty:    6.25,
		Due:           last.Add(72 * time.Hour),
		ElapsedDays:   1.5,
		ScheduledDays: 3,
		Reps:          2,
		Lapses:        0,
		LastReview:    &last,
		Reviews: []ReviewLog{
			{Rating: Good, ReviewedAt: created},
			{Rating: Easy, ReviewedAt: last},
		},
	}

	data, err := json.Marshal(card)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, key := range []string{`"card_type":"fact"`, `"question":"Capital of France?"`, `"reviewed_at"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("Expected JSON to contain %s, but got %s", key, data)
		}
	}
	if strings.Contains(string(data), `"concept"`) {
		t.Errorf("Expected no concept field for a fact card, but got %s", data)
	}

	var back Card
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(card, back) {
		t.Errorf("Round trip mismatch:\nwant %+v\ngot  %+v", card, back)
	}
}

func TestCardClone(t *testing.T) {
	last := time.Now()
	card := &Card{ID: "c1", Tags: []string{"a"}, LastReview: &last, Reviews: []ReviewLog{{Rating: Good}}}
	cp := card.Clone()
	cp.Tags[0] = "b"
	cp.Reviews[0].Rating = Again
	*cp.LastReview = last.Add(time.Hour)

	if card.Tags[0] != "a" || card.Reviews[0].Rating != Good || !card.LastReview.Equal(last) {
		t.Errorf("Expected original card to be untouched, but got %+v", card)
	}
}

func TestRatingAndState(t *testing.T) {
	for _, r := range []Rating{Again, Hard, Good, Easy} {
		if !r.IsValid() {
			t.Errorf("Expected %v to be valid", r)
		}
	}
	for _, r := range []Rating{0, 5, -1} {
		if r.IsValid() {
			t.Errorf("Expected %d to be invalid", int(r))
		}
	}
	if Rating(9).String() != "Rating(9)" {
		t.Errorf("Expected Rating(9), but got %s", Rating(9))
	}
	if State("archived").IsValid() {
		t.Error("Expected unknown state to be invalid")
	}
}
