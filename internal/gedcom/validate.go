package gedcom

import (
	"fmt"
	"io"
	"strings"
)

// ValidationResult summarises a GEDCOM file without building the model.
// Errors block an import; warnings are advisory.
type ValidationResult struct {
	Valid       bool
	Source      string
	Version     string
	Individuals int
	Families    int
	Warnings    []string
	Errors      []string
}

// Validate makes a cheap pass over r, suitable for checking a file before
// importing it.
func Validate(r io.Reader) *ValidationResult {
	res := &ValidationResult{}
	var hasHead, hasTrailer, inHead bool
	var level1 string

	err := scan(r, func(n int, text string) error {
		l, ok := parseLine(text)
		if !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: malformed line %q", n, text))
			return nil
		}
		if l.level == 0 {
			inHead = l.tag == "HEAD"
			switch {
			case l.tag == "HEAD":
				hasHead = true
			case l.tag == "TRLR":
				hasTrailer = true
			case l.tag == "INDI":
				res.Individuals++
			case l.tag == "FAM":
				res.Families++
			}
			return nil
		}
		if !inHead {
			return nil
		}
		switch {
		case l.level == 1:
			level1 = l.tag
			if l.tag == "SOUR" {
				res.Source = l.value
			}
		case l.level == 2 && l.tag == "VERS" && level1 == "GEDC":
			res.Version = l.value
		}
		return nil
	})
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
	}

	if !hasHead {
		res.Errors = append(res.Errors, "missing HEAD record")
	}
	if !hasTrailer {
		res.Warnings = append(res.Warnings, "missing TRLR record")
	}
	if hasHead && !strings.HasPrefix(res.Version, "5.5") {
		version := res.Version
		if version == "" {
			version = "none"
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf("GEDCOM version %s may not be supported, expected 5.5.x", version))
	}
	if res.Individuals == 0 {
		res.Warnings = append(res.Warnings, "no individuals found")
	}
	res.Valid = len(res.Errors) == 0
	return res
}
