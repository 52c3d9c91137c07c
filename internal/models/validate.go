package models

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Column size limits shared by validation and the declared tables.
const (
	MaxNameLength     = 255
	MaxURLLength      = 200
	MaxEmailLength    = 254
	MaxISBNLength     = 20
	MaxUsernameLength = 150
	MaxLocationLength = 100
	MaxPhotoLength    = 100
)

// ProfilePhotoDir is the directory profile photos are stored under.
const ProfilePhotoDir = "profile_photos/"

// ValidationError reports a field that failed a field-level constraint.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// checker collects field errors in the order they are found.
type checker struct {
	errs []error
}

func (c *checker) check(ok bool, field, message string) {
	if !ok {
		c.errs = append(c.errs, &ValidationError{Field: field, Message: message})
	}
}

func (c *checker) required(value, field string) {
	c.check(strings.TrimSpace(value) != "", field, "must be provided")
}

func (c *checker) maxLength(value string, max int, field string) {
	c.check(utf8.RuneCountInString(value) <= max, field, fmt.Sprintf("must not be more than %d characters", max))
}

func (c *checker) email(value, field string) {
	c.required(value, field)
	c.maxLength(value, MaxEmailLength, field)
	if value != "" {
		c.check(isEmail(value), field, "must be a valid email address")
	}
}

func (c *checker) err() error {
	return errors.Join(c.errs...)
}

func isEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func isURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Validate checks the user's field constraints.
func (u User) Validate() error {
	var c checker
	c.required(u.Username, "username")
	c.maxLength(u.Username, MaxUsernameLength, "username")
	c.email(u.Email, "email")
	return c.err()
}

// Validate checks the publisher's field constraints.
func (p Publisher) Validate() error {
	var c checker
	c.required(p.Name, "name")
	c.maxLength(p.Name, MaxNameLength, "name")
	c.required(p.Website, "website")
	c.maxLength(p.Website, MaxURLLength, "website")
	if p.Website != "" {
		c.check(isURL(p.Website), "website", "must be a valid URL")
	}
	c.email(p.Email, "email")
	return c.err()
}

// Validate checks the contributor's field constraints.
func (ct Contributor) Validate() error {
	var c checker
	c.required(ct.FirstNames, "first_names")
	c.maxLength(ct.FirstNames, MaxNameLength, "first_names")
	c.required(ct.LastNames, "last_names")
	c.email(ct.Email, "email")
	return c.err()
}

// Validate checks the book's field constraints. The publisher reference is
// checked by the store.
func (b Book) Validate() error {
	var c checker
	c.required(b.Title, "title")
	c.maxLength(b.Title, MaxNameLength, "title")
	c.check(!b.PublicationDate.IsZero(), "publication_date", "must be provided")
	c.required(b.ISBN, "isbn")
	c.maxLength(b.ISBN, MaxISBNLength, "isbn")
	c.check(b.PublisherID != 0, "publisher", "must be provided")
	return c.err()
}

// Validate checks the role is one of the declared choices.
func (bc BookContributor) Validate() error {
	var c checker
	c.check(bc.BookID != 0, "book", "must be provided")
	c.check(bc.ContributorID != 0, "contributor", "must be provided")
	c.check(bc.Role.Valid(), "role", fmt.Sprintf("%q is not a valid choice", bc.Role))
	return c.err()
}

// Validate checks the review's content and rating.
func (r Review) Validate() error {
	var c checker
	c.required(r.Content, "content")
	c.check(r.Rating.Valid(), "rating", fmt.Sprintf("%d is not a valid choice", r.Rating))
	c.check(r.CreatorID != 0, "creator", "must be provided")
	c.check(r.BookID != 0, "book", "must be provided")
	return c.err()
}

// Validate checks the profile's field constraints.
func (p ReviewerProfile) Validate() error {
	var c checker
	c.check(p.UserID != 0, "user", "must be provided")
	c.required(p.Location, "location")
	c.maxLength(p.Location, MaxLocationLength, "location")
	if p.ProfilePhoto != nil {
		c.maxLength(*p.ProfilePhoto, MaxPhotoLength, "profile_photo")
		c.check(strings.HasPrefix(*p.ProfilePhoto, ProfilePhotoDir), "profile_photo", "must be stored under "+ProfilePhotoDir)
	}
	return c.err()
}
