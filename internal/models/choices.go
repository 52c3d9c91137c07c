package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ContributionRole is the part a contributor played in a book.
type ContributionRole string

const (
	RoleAuthor   ContributionRole = "AUTHOR"
	RoleCoAuthor ContributionRole = "CO_AUTHOR"
	RoleEditor   ContributionRole = "EDITOR"
)

// ContributionRoles lists every role in display order.
var ContributionRoles = []ContributionRole{RoleAuthor, RoleCoAuthor, RoleEditor}

var roleLabels = map[ContributionRole]string{
	RoleAuthor:   "Author",
	RoleCoAuthor: "Co-Author",
	RoleEditor:   "Editor",
}

// Valid reports whether r is one of the declared roles.
func (r ContributionRole) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

// Label is the human readable name of the role.
func (r ContributionRole) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return string(r)
}

// ParseContributionRole accepts either the stored value ("CO_AUTHOR") or the
// label ("Co-Author"), case-insensitively.
func ParseContributionRole(s string) (ContributionRole, error) {
	s = strings.TrimSpace(s)
	for _, r := range ContributionRoles {
		if strings.EqualFold(s, string(r)) || strings.EqualFold(s, r.Label()) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown contribution role %q", s)
}

// Rating is the score a reviewer gives a book, from 1 to 5.
type Rating int

const (
	MinRating Rating = 1
	MaxRating Rating = 5
)

// Ratings lists every rating value in ascending order.
var Ratings = []Rating{1, 2, 3, 4, 5}

var ratingDisplay = map[Rating]string{
	1: "☆",
	2: "☆☆",
	3: "☆☆☆",
	4: "☆☆☆☆",
	5: "☆☆☆☆☆",
}

// Valid reports whether r is within [MinRating, MaxRating].
func (r Rating) Valid() bool {
	return r >= MinRating && r <= MaxRating
}

// Stars renders the rating as a string of star glyphs, one per point.
func (r Rating) Stars() string {
	return ratingDisplay[r]
}

func (r Rating) String() string {
	if s, ok := ratingDisplay[r]; ok {
		return s
	}
	return strconv.Itoa(int(r))
}

// ParseRating parses a decimal rating and checks it is in range.
func ParseRating(s string) (Rating, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid rating %q: %w", s, err)
	}
	r := Rating(n)
	if !r.Valid() {
		return 0, fmt.Errorf("rating %d out of range %d-%d", n, MinRating, MaxRating)
	}
	return r, nil
}
