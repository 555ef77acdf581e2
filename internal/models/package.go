package models

// Package is a photoshoot offering shown on the booking form.
type Package struct {
	ID         string   `yaml:"id" json:"id"`
	Title      string   `yaml:"title" json:"title"`
	Price      string   `yaml:"price" json:"price"`
	Duration   string   `yaml:"duration" json:"duration"`
	Inclusions []string `yaml:"inclusions" json:"inclusions"`
	Extras     []string `yaml:"extras" json:"extras,omitempty"`
}

// DefaultPackages is the catalog used when the config lists none.
var DefaultPackages = []Package{
	{
		ID:         "solo",
		Title:      "Solo Photoshoot",
		Price:      "Php 250.00",
		Duration:   "1 hr session",
		Inclusions: []string{"Unlimited shots", "10 edited photos"},
		Extras:     []string{"Php 50 / 30-min extension", "Php 50 per 10 additional photos"},
	},
	{
		ID:         "group",
		Title:      "Group Photoshoot",
		Price:      "Php 150.00 per head",
		Duration:   "1 hr session",
		Inclusions: []string{"Group + individual shots", "10 edited photos"},
		Extras:     []string{"Php 50/head / 30-min extension", "Php 50 per 10 additional photos"},
	},
	{
		ID:         "event",
		Title:      "Event Photoshoot (50 pax)",
		Price:      "Php 5,000.00",
		Duration:   "1 hr session",
		Inclusions: []string{"Event proper + group + individual shots", "10 edited photos"},
		Extras:     []string{"Php 500 / 30-min extension", "Php 50 per 10 additional photos", "Videography & editing charged separately"},
	},
}

// FindPackage looks a package up by id.
func FindPackage(pkgs []Package, id string) (Package, bool) {
	for _, p := range pkgs {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}
