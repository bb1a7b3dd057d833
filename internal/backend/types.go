package backend

import "github.com/kozaktomas/attendance/internal/attendance"

// StudentRecord is one entry of the /api/etudiants listing. Only the fields
// the attendance session needs are decoded.
type StudentRecord struct {
	Number   attendance.RawID `json:"numero_etudiant"`
	LegacyID attendance.RawID `json:"id_etudiant"`
	Name     string           `json:"nom"`
	Email    string           `json:"email,omitempty"`
}

// ID returns the student number, falling back to the legacy id field.
func (s StudentRecord) ID() string {
	if !s.Number.IsZero() {
		return s.Number.String()
	}
	return s.LegacyID.String()
}

type studentsResponse struct {
	Success  *bool           `json:"success"`
	Count    int             `json:"count"`
	Students []StudentRecord `json:"etudiants"`
	Data     []StudentRecord `json:"data"`
	Error    string          `json:"error"`
}

// finalizeRequest is the body of POST /api/presences/interactive/finalize.
type finalizeRequest struct {
	CourseID  string   `json:"code_cours"`
	Present   []string `json:"presents"`
	Absent    []string `json:"absents"`
	Unmatched []string `json:"non_identifies,omitempty"`
}

type finalizeResponse struct {
	Success        bool    `json:"success"`
	PresenceID     *string `json:"presence_id"`
	PresentCount   int     `json:"nb_presents"`
	AbsentCount    int     `json:"nb_absents"`
	EmailSent      bool    `json:"email_envoye"`
	EmailRecipient *string `json:"email_destinataire"`
	Message        string  `json:"message"`
	Error          string  `json:"erreur"`
	ErrorEN        string  `json:"error"`
}
