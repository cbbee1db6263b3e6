package clinic

// DoctorProfile pairs a doctor with their specialty for the directory.
type DoctorProfile struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

// FAQ is a canned question/answer pair.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Info is the clinic directory payload.
type Info struct {
	Name     string            `json:"name,omitempty"`
	Address  string            `json:"address,omitempty"`
	Phone    string            `json:"phone,omitempty"`
	Email    string            `json:"email,omitempty"`
	Hours    map[string]string `json:"hours,omitempty"`
	Services []string          `json:"services,omitempty"`
	Doctors  []DoctorProfile   `json:"doctors,omitempty"`
	FAQs     []FAQ             `json:"faqs,omitempty"`
}

// Directory serves static clinic information.
type Directory struct {
	info Info
}

// NewDirectory returns the clinic's directory.
func NewDirectory() *Directory {
	return &Directory{info: Info{
		Name:    "Confido Health Clinic",
		Address: "123 Healthcare Ave, Medical District, CA 90210",
		Phone:   "(555) 123-4567",
		Email:   "info@confidohealth.com",
		Hours: map[string]string{
			"Monday":    "8:00 AM - 6:00 PM",
			"Tuesday":   "8:00 AM - 6:00 PM",
			"Wednesday": "8:00 AM - 6:00 PM",
			"Thursday":  "8:00 AM - 6:00 PM",
			"Friday":    "8:00 AM - 5:00 PM",
			"Saturday":  "9:00 AM - 2:00 PM",
			"Sunday":    "Closed",
		},
		Services: []string{
			"Primary Care",
			"Preventive Medicine",
			"Pediatrics",
			"Women's Health",
			"Geriatrics",
			"Laboratory Services",
			"Vaccinations",
			"Minor Procedures",
		},
		Doctors: []DoctorProfile{
			{Name: "Dr. Emily Smith", Specialty: "Family Medicine"},
			{Name: "Dr. Michael Jackson", Specialty: "Internal Medicine"},
			{Name: "Dr. Sarah Williams", Specialty: "Pediatrics"},
			{Name: "Dr. David Brown", Specialty: "Geriatrics"},
		},
		FAQs: []FAQ{
			{Question: "Do you accept new patients?", Answer: "Yes, we are currently accepting new patients. Please call our office to schedule an initial consultation."},
			{Question: "What insurance plans do you accept?", Answer: "We accept most major insurance plans including Blue Cross, Aetna, Cigna, and UnitedHealthcare."},
			{Question: "How do I refill my prescription?", Answer: "You can request prescription refills through our patient portal or by calling our office directly."},
			{Question: "How do I schedule a telehealth appointment?", Answer: "Telehealth appointments can be scheduled through our website or by calling our office."},
		},
	}}
}

// Lookup returns the slice of the directory named by queryType; an empty or
// unknown queryType returns everything.
func (d *Directory) Lookup(queryType string) Info {
	switch queryType {
	case "hours":
		return Info{Hours: d.info.Hours}
	case "location":
		return Info{Address: d.info.Address, Phone: d.info.Phone}
	case "services":
		return Info{Services: d.info.Services}
	case "doctors":
		return Info{Doctors: d.info.Doctors}
	default:
		return d.info
	}
}
