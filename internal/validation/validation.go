// ABOUTME: Inventory snapshot validation and normalisation before evaluation.
// ABOUTME: Struct-tag range checks plus closed-enum parsing and asset id uniqueness.

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jfeddern/PatchRelay/internal/types"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	MaxAssets = 50000
)

func init() {
	validate = validator.New()
	// report wire names (vuln, patch, loss) instead of Go field names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// ValidateAsset checks field ranges and the closed enums of one asset
func ValidateAsset(a *types.Asset) error {
	if a == nil {
		return errors.New("asset cannot be nil")
	}
	if err := validate.Struct(a); err != nil {
		return formatValidationError(err)
	}
	if _, err := types.ParseDeviceType(string(a.Type)); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	if _, err := types.ParseZone(string(a.Zone)); err != nil {
		return fmt.Errorf("zone: %w", err)
	}
	if _, err := types.ParseStatus(string(a.Status)); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	return nil
}

// ValidateLink checks a link's endpoints and quality figures
func ValidateLink(l *types.Link) error {
	if l == nil {
		return errors.New("link cannot be nil")
	}
	if err := validate.Struct(l); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// Normalize validates a snapshot and returns a copy with canonical zone and status values
// and generated ids for links that lack one. Links to unknown assets are kept; the graph
// skips them.
func Normalize(snap types.Snapshot) (types.Snapshot, error) {
	if len(snap.Assets) > MaxAssets {
		return types.Snapshot{}, fmt.Errorf("assets: maximum %d assets allowed, got %d", MaxAssets, len(snap.Assets))
	}

	out := types.Snapshot{
		Assets: make([]types.Asset, 0, len(snap.Assets)),
		Links:  make([]types.Link, 0, len(snap.Links)),
	}
	seen := make(map[string]bool, len(snap.Assets))

	for i := range snap.Assets {
		a := snap.Assets[i]
		if err := ValidateAsset(&a); err != nil {
			return types.Snapshot{}, fmt.Errorf("assets[%d]: %w", i, err)
		}
		if seen[a.ID] {
			return types.Snapshot{}, fmt.Errorf("assets[%d]: duplicate id %q", i, a.ID)
		}
		seen[a.ID] = true

		// already validated above
		a.Zone, _ = types.ParseZone(string(a.Zone))
		a.Status, _ = types.ParseStatus(string(a.Status))
		a.CVEs = append([]string(nil), a.CVEs...)
		out.Assets = append(out.Assets, a)
	}

	for i := range snap.Links {
		l := snap.Links[i]
		if err := ValidateLink(&l); err != nil {
			return types.Snapshot{}, fmt.Errorf("links[%d]: %w", i, err)
		}
		if l.ID == "" {
			l.ID = fmt.Sprintf("L_%s|%s", l.Source, l.Target)
		}
		out.Links = append(out.Links, l)
	}

	if len(snap.History) > 0 {
		out.History = make(map[string][]float64, len(snap.History))
		for id, samples := range snap.History {
			out.History[id] = append([]float64(nil), samples...)
		}
	}

	return out, nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Field()
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max", "lte":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}

	return err
}
