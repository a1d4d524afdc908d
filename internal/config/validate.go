package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator"
)

// ErrInvalidConfig is returned when required configuration is missing or malformed.
var ErrInvalidConfig = errors.New("invalid config")

// envHints names the environment variable that usually supplies a key.
var envHints = map[string]string{
	"search.api_key":          "SERPAPI_KEY",
	"ocr.api_key":             "OPENAI_API_KEY",
	"tableau.server_url":      "TABLEAU_SERVER_URL",
	"tableau.site_id":         "TABLEAU_SITE_ID",
	"tableau.pat_name":        "TABLEAU_PAT_NAME",
	"tableau.pat_secret":      "TABLEAU_PAT_SECRET",
	"tableau.project_name":    "TABLEAU_PROJECT_NAME",
	"tableau.datasource_name": "TABLEAU_DATASOURCE_NAME",
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks the whole configuration and reports every problem at once.
// It performs no I/O, so callers run it before any network activity.
func (c *Config) Validate() error {
	var problems []string

	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if c.Period.Start > c.Period.End {
		problems = append(problems, fmt.Sprintf("period.start %s is after period.end %s", c.Period.Start, c.Period.End))
	}

	banks := make(map[string]bool, len(c.Banks))
	for _, b := range c.Banks {
		banks[b.Key] = true
	}
	for _, a := range c.Advertisers {
		if a.Bank != "" && !banks[a.Bank] {
			problems = append(problems, fmt.Sprintf("advertiser %s references unknown bank %q", a.ID, a.Bank))
		}
	}

	hasOther := false
	for _, cat := range c.Categories {
		if cat == OtherCategory {
			hasOther = true
		}
	}
	if !hasOther {
		problems = append(problems, fmt.Sprintf("categories must include %q", OtherCategory))
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

// OtherCategory is the catch-all category every failed classification falls back to.
const OtherCategory = "Other"

func describe(fe validator.FieldError) string {
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	if fe.Tag() == "required" {
		if env, ok := envHints[key]; ok {
			return fmt.Sprintf("missing %s (%s)", key, env)
		}
		return fmt.Sprintf("missing %s", key)
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s fails %s=%s", key, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s fails %s", key, fe.Tag())
}
