// Package directory serves the consultable doctor roster. The catalog is
// seeded in-process; a database sits behind the same shape once the
// product outgrows a static list.
package directory

import (
	"strings"
)

// Availability is a doctor's current consultation state.
type Availability string

const (
	Available Availability = "available"
	Busy      Availability = "busy"
	Offline   Availability = "offline"
)

// Doctor is one directory entry.
type Doctor struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Specialty       string       `json:"specialty"`
	Credentials     string       `json:"credentials"`
	Rating          float64      `json:"rating"`
	ReviewCount     int          `json:"reviewCount"`
	Availability    Availability `json:"availability"`
	AvatarRef       string       `json:"avatarRef"`
	Experience      string       `json:"experience"`
	ConsultationFee int          `json:"consultationFee"`
	Languages       []string     `json:"languages"`
	NextAvailable   string       `json:"nextAvailable"`
}

// Catalog holds the doctor roster.
type Catalog struct {
	doctors []Doctor
}

// NewCatalog returns a catalog seeded with the standard roster.
func NewCatalog() *Catalog {
	return &Catalog{doctors: seedDoctors()}
}

// All returns every doctor.
func (c *Catalog) All() []Doctor {
	out := make([]Doctor, len(c.doctors))
	copy(out, c.doctors)
	return out
}

// BySpecialty returns doctors matching any of the given specialties,
// case-insensitively. An empty filter returns everyone.
func (c *Catalog) BySpecialty(specialties ...string) []Doctor {
	if len(specialties) == 0 {
		return c.All()
	}

	var out []Doctor
	for _, d := range c.doctors {
		for _, s := range specialties {
			if strings.EqualFold(d.Specialty, strings.TrimSpace(s)) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// Available returns doctors who can take a consultation right now.
func (c *Catalog) Available() []Doctor {
	var out []Doctor
	for _, d := range c.doctors {
		if d.Availability == Available {
			out = append(out, d)
		}
	}
	return out
}

func seedDoctors() []Doctor {
	return []Doctor{
		{ID: "1", Name: "Dr. Sachin Anand", Specialty: "Internal Medicine", Credentials: "MD, FACP", Rating: 4.9, ReviewCount: 328, Availability: Available, AvatarRef: "/avatars/sachin.png", Experience: "15 years", ConsultationFee: 75, Languages: []string{"English", "Mandarin"}, NextAvailable: "Today, 2:30 PM"},
		{ID: "2", Name: "Dr. Sanjay Ramasamy", Specialty: "General Practitioner", Credentials: "MD, MPH", Rating: 4.8, ReviewCount: 456, Availability: Available, AvatarRef: "/avatars/sanjay.jpg", Experience: "12 years", ConsultationFee: 65, Languages: []string{"English", "Spanish"}, NextAvailable: "Today, 3:00 PM"},
		{ID: "3", Name: "Dr. Sabarish Kumar", Specialty: "Family Medicine", Credentials: "MD, FAAFP", Rating: 4.7, ReviewCount: 289, Availability: Busy, AvatarRef: "/avatars/sabarish.jpg", Experience: "10 years", ConsultationFee: 70, Languages: []string{"English"}, NextAvailable: "Tomorrow, 9:00 AM"},
		{ID: "4", Name: "Dr. James Kim", Specialty: "Emergency Medicine", Credentials: "MD, FACEP", Rating: 4.9, ReviewCount: 512, Availability: Available, AvatarRef: "/avatars/james.jpg", Experience: "18 years", ConsultationFee: 85, Languages: []string{"English", "Korean"}, NextAvailable: "Today, 4:15 PM"},
		{ID: "5", Name: "Dr. Maria Garcia", Specialty: "Pediatric Care", Credentials: "MD, FAAP", Rating: 4.8, ReviewCount: 367, Availability: Offline, AvatarRef: "/avatars/maria.jpg", Experience: "14 years", ConsultationFee: 80, Languages: []string{"English", "Spanish", "Portuguese"}, NextAvailable: "Tomorrow, 10:30 AM"},
		{ID: "6", Name: "Dr. Priya Sharma", Specialty: "Dermatology", Credentials: "MD, FAAD", Rating: 4.9, ReviewCount: 421, Availability: Available, AvatarRef: "/avatars/priya.jpg", Experience: "11 years", ConsultationFee: 90, Languages: []string{"English", "Hindi", "Tamil"}, NextAvailable: "Today, 5:00 PM"},
		{ID: "7", Name: "Dr. Robert Chen", Specialty: "Cardiology", Credentials: "MD, FACC", Rating: 4.9, ReviewCount: 598, Availability: Available, AvatarRef: "/avatars/robert.jpg", Experience: "20 years", ConsultationFee: 120, Languages: []string{"English", "Mandarin"}, NextAvailable: "Today, 6:30 PM"},
		{ID: "8", Name: "Dr. Aisha Mohammed", Specialty: "Psychiatry", Credentials: "MD, FAPA", Rating: 4.7, ReviewCount: 234, Availability: Busy, AvatarRef: "/avatars/aisha.jpg", Experience: "9 years", ConsultationFee: 95, Languages: []string{"English", "Arabic", "French"}, NextAvailable: "Tomorrow, 11:00 AM"},
		{ID: "9", Name: "Dr. Michael O'Brien", Specialty: "Orthopedics", Credentials: "MD, FAAOS", Rating: 4.8, ReviewCount: 445, Availability: Available, AvatarRef: "/avatars/michael.jpg", Experience: "16 years", ConsultationFee: 110, Languages: []string{"English"}, NextAvailable: "Today, 7:00 PM"},
		{ID: "10", Name: "Dr. Lisa Wang", Specialty: "Neurology", Credentials: "MD, FAAN", Rating: 4.9, ReviewCount: 512, Availability: Available, AvatarRef: "/avatars/lisa.jpg", Experience: "17 years", ConsultationFee: 115, Languages: []string{"English", "Mandarin", "Cantonese"}, NextAvailable: "Tomorrow, 8:30 AM"},
		{ID: "11", Name: "Dr. Carlos Rodriguez", Specialty: "Gastroenterology", Credentials: "MD, FACG", Rating: 4.7, ReviewCount: 298, Availability: Busy, AvatarRef: "/avatars/carlos.jpg", Experience: "13 years", ConsultationFee: 100, Languages: []string{"English", "Spanish"}, NextAvailable: "Tomorrow, 1:00 PM"},
		{ID: "12", Name: "Dr. Yuki Tanaka", Specialty: "Ophthalmology", Credentials: "MD, FACS", Rating: 4.8, ReviewCount: 376, Availability: Available, AvatarRef: "/avatars/yuki.jpg", Experience: "14 years", ConsultationFee: 105, Languages: []string{"English", "Japanese"}, NextAvailable: "Today, 4:45 PM"},
		{ID: "13", Name: "Dr. Fatima Hassan", Specialty: "Endocrinology", Credentials: "MD, FACE", Rating: 4.9, ReviewCount: 467, Availability: Available, AvatarRef: "/avatars/fatima.jpg", Experience: "15 years", ConsultationFee: 95, Languages: []string{"English", "Arabic", "Urdu"}, NextAvailable: "Today, 3:30 PM"},
		{ID: "14", Name: "Dr. Thomas Anderson", Specialty: "Pulmonology", Credentials: "MD, FCCP", Rating: 4.8, ReviewCount: 389, Availability: Available, AvatarRef: "/avatars/thomas.jpg", Experience: "19 years", ConsultationFee: 110, Languages: []string{"English", "German"}, NextAvailable: "Tomorrow, 9:15 AM"},
		{ID: "15", Name: "Dr. Nadia Patel", Specialty: "Rheumatology", Credentials: "MD, FACR", Rating: 4.7, ReviewCount: 256, Availability: Busy, AvatarRef: "/avatars/nadia.jpg", Experience: "12 years", ConsultationFee: 100, Languages: []string{"English", "Hindi", "Gujarati"}, NextAvailable: "Tomorrow, 2:30 PM"},
	}
}
