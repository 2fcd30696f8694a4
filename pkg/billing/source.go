package billing

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// PlansSource defines how plans are loaded into a Catalog.
type PlansSource interface {
	Load(ctx context.Context) ([]Plan, error)
}

type inMemSource struct {
	plans []Plan
}

// NewInMemSource returns a source holding a deep copy of the given plans.
// Panics if no plans are provided so the catalog always has at least one tier.
func NewInMemSource(plans ...Plan) PlansSource {
	if len(plans) < 1 {
		panic("billing: at least one plan is required")
	}
	cp := make([]Plan, len(plans))
	for i, p := range plans {
		cp[i] = p.clone()
	}
	return &inMemSource{plans: cp}
}

// Load returns a copy of the plans so callers cannot mutate the source.
func (s *inMemSource) Load(_ context.Context) ([]Plan, error) {
	cp := make([]Plan, len(s.plans))
	for i, p := range s.plans {
		cp[i] = p.clone()
	}
	return cp, nil
}

// yamlCatalog is the on-disk shape of a plan catalog file.
type yamlCatalog struct {
	Currency string `yaml:"currency"`
	Plans    []Plan `yaml:"plans"`
}

type yamlSource struct {
	fsys fs.FS
	path string
}

// NewYAMLSource reads the catalog from a YAML file on the local filesystem.
//
// Example file:
//
//	currency: EUR
//	plans:
//	  - code: HOST
//	    name: Host
//	    max_properties: 5
//	    price_monthly: {amount: 2900}
//	    features: [digital_guides, qr_codes, analytics]
//	    visible: true
//
// Semiannual and annual prices may be omitted; they are derived on load.
func NewYAMLSource(path string) PlansSource {
	return &yamlSource{path: path}
}

// NewYAMLSourceFS reads the catalog from a file inside fsys (e.g. an embed.FS).
func NewYAMLSourceFS(fsys fs.FS, path string) PlansSource {
	return &yamlSource{fsys: fsys, path: path}
}

func (s *yamlSource) Load(_ context.Context) ([]Plan, error) {
	var data []byte
	var err error
	if s.fsys != nil {
		data, err = fs.ReadFile(s.fsys, s.path)
	} else {
		data, err = os.ReadFile(s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read plan catalog %s: %w", s.path, err)
	}
	return ParsePlansYAML(data)
}

// ParsePlansYAML decodes a YAML catalog document. Unknown keys are rejected.
func ParsePlansYAML(data []byte) ([]Plan, error) {
	var doc yamlCatalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode plan catalog: %w", err)
	}

	cur := doc.Currency
	if cur == "" {
		cur = DefaultCurrency
	}
	for i := range doc.Plans {
		p := &doc.Plans[i]
		p.Code = NormalizePlanCode(string(p.Code))
		for _, m := range []*Money{&p.PriceMonthly, &p.PriceSemiannual, &p.PriceAnnual} {
			if m.Currency == "" {
				m.Currency = cur
			}
		}
	}
	return doc.Plans, nil
}

// DefaultPlans returns the built-in tier table.
func DefaultPlans() []Plan {
	return []Plan{
		{
			Code:          PlanBasic,
			Name:          "Basic",
			Description:   "For hosts starting out with one or two listings",
			MaxProperties: 2,
			PriceMonthly:  EUR(1500),
			Features:      []Feature{FeatureDigitalGuides, FeatureQRCodes},
			Visible:       true,
		},
		{
			Code:          PlanHost,
			Name:          "Host",
			Description:   "For growing hosts with a handful of properties",
			MaxProperties: 5,
			PriceMonthly:  EUR(2900),
			Features:      []Feature{FeatureDigitalGuides, FeatureQRCodes, FeatureAnalytics, FeatureNotifications},
			Visible:       true,
		},
		{
			Code:          PlanSuperhost,
			Name:          "Superhost",
			Description:   "For professional hosts",
			MaxProperties: 15,
			PriceMonthly:  EUR(6900),
			Features: []Feature{
				FeatureDigitalGuides, FeatureQRCodes, FeatureAnalytics, FeatureNotifications,
				FeatureCustomBranding, FeatureMultiLanguage,
			},
			Visible: true,
		},
		{
			Code:          PlanBusiness,
			Name:          "Business",
			Description:   "For property management companies",
			MaxProperties: 50,
			PriceMonthly:  EUR(17900),
			Features: []Feature{
				FeatureDigitalGuides, FeatureQRCodes, FeatureAnalytics, FeatureNotifications,
				FeatureCustomBranding, FeatureMultiLanguage, FeaturePrioritySupport,
				FeatureTeamCollaboration, FeatureAPI,
			},
			Visible: true,
		},
		{
			Code:          PlanEnterprise,
			Name:          "Enterprise",
			Description:   "Custom contracts, sold by the sales team",
			MaxProperties: 200,
			PriceMonthly:  EUR(59900),
			Features: []Feature{
				FeatureDigitalGuides, FeatureQRCodes, FeatureAnalytics, FeatureNotifications,
				FeatureCustomBranding, FeatureMultiLanguage, FeaturePrioritySupport,
				FeatureTeamCollaboration, FeatureAPI, FeatureAccountManager,
			},
			Visible: false,
		},
	}
}

// DefaultCatalog returns the validated built-in catalog.
func DefaultCatalog() *Catalog {
	return MustNewCatalog(DefaultPlans()...)
}
