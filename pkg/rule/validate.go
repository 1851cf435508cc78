package rule

import (
	"fmt"
	"math"
)

// ValidateRule checks required fields, flag names and the examples of r.
func ValidateRule(r *Rule) error {
	if r == nil {
		return fmt.Errorf("rule is nil")
	}

	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.Pattern == "" {
		return fmt.Errorf("rule %s: pattern is required", r.Name)
	}
	if r.HasID && r.ID > math.MaxInt32 {
		return fmt.Errorf("rule %s: id %d out of range", r.Name, r.ID)
	}

	re, err := r.Regexp()
	if err != nil {
		return err
	}

	for _, ex := range r.Examples {
		ok, err := re.MatchString(ex)
		if err != nil {
			return fmt.Errorf("rule %s: matching example %q: %w", r.Name, ex, err)
		}
		if !ok {
			return fmt.Errorf("rule %s: example %q does not match", r.Name, ex)
		}
	}
	for _, ex := range r.NegativeExamples {
		ok, err := re.MatchString(ex)
		if err != nil {
			return fmt.Errorf("rule %s: matching negative example %q: %w", r.Name, ex, err)
		}
		if ok {
			return fmt.Errorf("rule %s: negative example %q matches", r.Name, ex)
		}
	}

	return nil
}

// ValidateSet validates every rule and checks that names are unique and that
// ids are either given for all rules or for none, without duplicates.
func ValidateSet(rules []*Rule) error {
	names := make(map[string]bool, len(rules))
	ids := make(map[uint]string, len(rules))
	withID := 0

	for _, r := range rules {
		if err := ValidateRule(r); err != nil {
			return err
		}
		if names[r.Name] {
			return fmt.Errorf("duplicate rule name: %s", r.Name)
		}
		names[r.Name] = true

		if !r.HasID {
			continue
		}
		withID++
		if other, ok := ids[r.ID]; ok {
			return fmt.Errorf("rules %s and %s share id %d", other, r.Name, r.ID)
		}
		ids[r.ID] = r.Name
	}

	if withID != 0 && withID != len(rules) {
		return fmt.Errorf("ids must be given for all rules or none (%d of %d have one)", withID, len(rules))
	}
	return nil
}
