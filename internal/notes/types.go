package notes

// Medicine is one prescribed item in the note
type Medicine struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Route     string `json:"route"`
}

// Draft is a structured clinical note synthesized from the transcript
type Draft struct {
	Subjective            string     `json:"subjective"`
	Objective             string     `json:"objective"`
	Assessment            string     `json:"assessment"`
	DifferentialDiagnosis string     `json:"differentialDiagnosis"`
	LabResults            string     `json:"labResults"`
	Advice                string     `json:"advice"`
	Medicines             []Medicine `json:"medicines"`
}

// DoctorProfile shapes what the synthesized note may contain
type DoctorProfile struct {
	Qualification          string `json:"qualification"`
	CanPrescribeAllopathic bool   `json:"canPrescribeAllopathic"`
}
