/*
Package factory turns JSON documents into subscription inputs.

PURPOSE:
  The core packages take typed values only. This package decodes the
  account directory and partner data files and pairs each partner file
  with its name, keeping the order the caller gave.

JSON SCHEMA:
  accounts.json
  {
    "users": [
      {"number": "0001", "name": "Jane Doe"}
    ]
  }

  <partner>.json
  {
    "grants": [
      {"number": "0001", "date": "2015-02-21T15:10:01Z", "period": 2}
    ],
    "revocations": [
      {"number": "0001", "date": "2015-03-11T00:00:00Z"}
    ]
  }

  Account numbers may be JSON strings or JSON numbers; both become the
  same AccountID. Grant and revocation fields are kept as raw text, so a
  bad value of any JSON type only fails that record at ingestion.

USAGE:
  accounts, err := factory.LoadAccounts("data/accounts.json")
  specs, err := factory.LoadSpecs([]factory.PartnerFile{
      {Name: "Wondertel", Path: "data/wondertel.json"},
  })
  report, err := subscription.Compute(accounts, specs)

SEE ALSO:
  - partner/partner.go: Source / GrantRecord / RevocationRecord
  - subscription/subscription.go: Spec
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/warp/subscription-engine/generic"
	"github.com/warp/subscription-engine/partner"
	"github.com/warp/subscription-engine/subscription"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// AccountsJSON is the account directory document.
type AccountsJSON struct {
	Users []AccountJSON `json:"users"`
}

type AccountJSON struct {
	Number Number `json:"number"`
	Name   string `json:"name"`
}

// SourceJSON is one partner's data document.
type SourceJSON struct {
	Grants      []GrantJSON      `json:"grants"`
	Revocations []RevocationJSON `json:"revocations"`
}

// GrantJSON and RevocationJSON keep every field as partner.Text. A value
// of the wrong JSON type then fails only its own record at ingestion
// instead of the whole document at decode time.
type GrantJSON struct {
	Number partner.Text `json:"number"`
	Date   partner.Text `json:"date"`
	Period partner.Text `json:"period"`
}

type RevocationJSON struct {
	Number partner.Text `json:"number"`
	Date   partner.Text `json:"date"`
}

// Number is an account number written either as a JSON string or as a
// JSON number. It decodes to the literal text in both cases.
type Number string

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("account number %s: %w", data, generic.ErrInvalidID)
	}
	*n = Number(num.String())
	return nil
}

// =============================================================================
// DECODING
// =============================================================================

// ParseAccounts decodes an accounts document into directory entries.
// Shape validation is left to generic.NewDirectory.
func ParseAccounts(r io.Reader) ([]generic.Account, error) {
	var doc AccountsJSON
	if err := decode(r, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse accounts JSON: %w", err)
	}

	return doc.ToAccounts(), nil
}

// ToAccounts converts the document to directory entries, in order.
func (doc AccountsJSON) ToAccounts() []generic.Account {
	accounts := make([]generic.Account, 0, len(doc.Users))
	for _, u := range doc.Users {
		accounts = append(accounts, generic.Account{
			Number: generic.AccountID(strings.TrimSpace(string(u.Number))),
			Name:   u.Name,
		})
	}
	return accounts
}

// ParseSource decodes one partner's data document.
func ParseSource(r io.Reader) (partner.Source, error) {
	var doc SourceJSON
	if err := decode(r, &doc); err != nil {
		return partner.Source{}, fmt.Errorf("failed to parse partner JSON: %w", err)
	}
	return doc.ToSource(), nil
}

// ToSource converts the document to the records partner.Load consumes.
func (doc SourceJSON) ToSource() partner.Source {
	src := partner.Source{
		Grants:      make([]partner.GrantRecord, 0, len(doc.Grants)),
		Revocations: make([]partner.RevocationRecord, 0, len(doc.Revocations)),
	}
	for _, g := range doc.Grants {
		src.Grants = append(src.Grants, partner.GrantRecord{
			Number: string(g.Number),
			Date:   string(g.Date),
			Period: g.Period.Number(),
		})
	}
	for _, rv := range doc.Revocations {
		src.Revocations = append(src.Revocations, partner.RevocationRecord{
			Number: string(rv.Number),
			Date:   string(rv.Date),
		})
	}
	return src
}

func decode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec.Decode(v)
}

// =============================================================================
// FILES
// =============================================================================

// PartnerFile names a partner and the file holding its data.
type PartnerFile struct {
	Name string
	Path string
}

func (pf PartnerFile) String() string {
	return pf.Name + "=" + pf.Path
}

// ParsePartnerFile parses "Name=path".
func ParsePartnerFile(s string) (PartnerFile, error) {
	name, path, ok := strings.Cut(s, "=")
	name, path = strings.TrimSpace(name), strings.TrimSpace(path)
	if !ok || name == "" || path == "" {
		return PartnerFile{}, fmt.Errorf("%w: partner %q must look like Name=path", generic.ErrInvalidSpec, s)
	}
	return PartnerFile{Name: name, Path: path}, nil
}

// LoadAccounts reads and decodes the account directory at path.
func LoadAccounts(path string) ([]generic.Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open accounts: %w", err)
	}
	defer f.Close()

	return ParseAccounts(f)
}

// LoadSource reads and decodes one partner file.
func LoadSource(path string) (partner.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return partner.Source{}, fmt.Errorf("open partner data: %w", err)
	}
	defer f.Close()

	return ParseSource(f)
}

// LoadSpecs loads every partner file, in order, into subscription specs.
func LoadSpecs(files []PartnerFile) ([]subscription.Spec, error) {
	specs := make([]subscription.Spec, 0, len(files))
	for _, pf := range files {
		src, err := LoadSource(pf.Path)
		if err != nil {
			return nil, fmt.Errorf("partner %s: %w", pf.Name, err)
		}
		specs = append(specs, subscription.Spec{
			Name: generic.PartnerName(pf.Name),
			Data: src,
		})
	}
	return specs, nil
}
