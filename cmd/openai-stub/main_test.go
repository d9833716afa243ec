package main

import "testing"

func TestReply(t *testing.T) {
	user := "Summarize what this says about housing. If nothing, reply with exactly: No housing topics found.\n\nExcerpt:\n\nCouncil approved 40 housing units on Elm Street. Parking was tabled."
	if got := reply(user, "housing"); got != "The minutes note: Council approved 40 housing units on Elm Street." {
		t.Fatalf("got %q", got)
	}
	if got := reply("Excerpt:\n\nParking was tabled.", "housing"); got != "No housing topics found." {
		t.Fatalf("got %q", got)
	}
}
