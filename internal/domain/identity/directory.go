package identity

import (
	"crypto/subtle"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Directory is a read-only, in-memory set of ABHA profiles keyed by ABHA ID.
// The first row wins when an ID appears more than once.
type Directory struct {
	byID map[string]Profile
}

func NewDirectory(profiles []Profile) *Directory {
	d := &Directory{byID: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		if _, dup := d.byID[p.ABHAID]; !dup {
			d.byID[p.ABHAID] = p
		}
	}
	return d
}

func (d *Directory) Len() int { return len(d.byID) }

// Authenticate returns the profile whose ABHA ID and phone both match.
func (d *Directory) Authenticate(abhaID, phone string) (*Profile, error) {
	p, ok := d.byID[strings.TrimSpace(abhaID)]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(p.Phone), []byte(strings.TrimSpace(phone))) != 1 {
		return nil, ErrInvalidCredentials
	}
	return &p, nil
}

func (d *Directory) Get(abhaID string) (*Profile, error) {
	p, ok := d.byID[abhaID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &p, nil
}

// LoadCSV reads a user directory with a header row naming the Profile JSON
// fields (abha_id, name, email, phone, dob, gender, address, created_at).
// abha_id and phone are required; the rest may be absent.
func LoadCSV(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open user directory: %w", err)
	}
	defer f.Close()

	profiles, err := readProfiles(f)
	if err != nil {
		return nil, fmt.Errorf("read user directory %s: %w", path, err)
	}
	return NewDirectory(profiles), nil
}

func readProfiles(r io.Reader) ([]Profile, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, req := range []string{"abha_id", "phone"} {
		if _, ok := col[req]; !ok {
			return nil, fmt.Errorf("missing required column %q", req)
		}
	}

	var profiles []Profile
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		cell := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		p := Profile{
			ABHAID:    cell("abha_id"),
			Name:      cell("name"),
			Email:     cell("email"),
			Phone:     cell("phone"),
			DOB:       cell("dob"),
			Gender:    cell("gender"),
			Address:   cell("address"),
			CreatedAt: cell("created_at"),
		}
		if p.ABHAID == "" {
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}
