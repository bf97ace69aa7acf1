// Package assets publishes credential documents and their metadata to a
// content-addressed object store. Keys are the SHA-256 of the bytes, so
// publishing the same bytes twice yields the same pointer and nothing new.
package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnavailable = errors.New("assets: store unavailable")
	ErrNotFound    = errors.New("assets: object not found")
	ErrBadPointer  = errors.New("assets: malformed pointer")
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeJSON = "application/json"
)

// ContentKey returns the object key for data.
func ContentKey(prefix string, data []byte) string {
	sum := sha256.Sum256(data)
	return prefix + hex.EncodeToString(sum[:])
}

// Attribute is one ERC-721 metadata trait.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Metadata is the ERC-721 metadata document a token points at. It only
// carries descriptive fields; never the serial or secret.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

// Descriptor is the descriptive input for BuildMetadata.
type Descriptor struct {
	RecipientName   string
	RecipientID     string
	Program         string
	DocumentType    string
	IssueDate       time.Time
	InstitutionName string
}

// BuildMetadata assembles the metadata document for an asset pointer.
func BuildMetadata(d Descriptor, assetPointer string) Metadata {
	kind := d.DocumentType
	if kind == "" {
		kind = "Credential"
	}
	issuer := d.InstitutionName
	if issuer == "" {
		issuer = "the issuing institution"
	}
	m := Metadata{
		Name:        fmt.Sprintf("%s: %s", titleCase(kind), d.RecipientName),
		Description: fmt.Sprintf("Official digital %s for %s issued by %s.", strings.ToLower(kind), d.RecipientName, issuer),
		Image:       assetPointer,
		Attributes: []Attribute{
			{TraitType: "Document Type", Value: kind},
			{TraitType: "Issue Date", Value: d.IssueDate.Format(time.DateOnly)},
		},
	}
	if d.RecipientID != "" {
		m.Attributes = append(m.Attributes, Attribute{TraitType: "Recipient ID", Value: d.RecipientID})
	}
	if d.Program != "" {
		m.Attributes = append(m.Attributes, Attribute{TraitType: "Program", Value: d.Program})
	}
	if d.InstitutionName != "" {
		m.Attributes = append(m.Attributes, Attribute{TraitType: "Institution", Value: d.InstitutionName})
	}
	return m
}

// Encode serializes metadata deterministically so equal documents share a key.
func (m Metadata) Encode() ([]byte, error) {
	return json.Marshal(m)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
