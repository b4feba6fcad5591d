package anonymizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeDates(t *testing.T) {
	assert.Equal(t, "seen on [DATA]", Anonymize("seen on 15/03/2024"))
	assert.Equal(t, "seen on [DATA]", Anonymize("seen on 2024-03-15"))
	assert.Equal(t, "seen on [DATA]", Anonymize("seen on 15-03-2024"))
}

func TestAnonymizePatientIdentifiers(t *testing.T) {
	assert.Equal(t, "Paciente ID: [PACIENTE_ID] admitted", Anonymize("Paciente ID: 12345 admitted"))
	assert.Equal(t, "Patient ID: [PACIENTE_ID]", Anonymize("Patient ID: 99887"))
	// Case-insensitive, label kept as written.
	assert.Equal(t, "id: [PACIENTE_ID]", Anonymize("id: 999"))
}

func TestAnonymizeMedicalRecord(t *testing.T) {
	assert.Equal(t, "Prontuário: [PRONTUARIO]", Anonymize("Prontuário: 445566"))
	assert.Equal(t, "Medical Record: [PRONTUARIO]", Anonymize("Medical Record: 7788"))
}

func TestAnonymizePhoneAndEmail(t *testing.T) {
	assert.Equal(t, "Contato: [TELEFONE] ou [EMAIL]",
		Anonymize("Contato: 11987654321 ou email@hospital.com"))
	assert.Equal(t, "tel [TELEFONE]", Anonymize("tel 11 98765-4321"))
}

func TestAnonymizeCPF(t *testing.T) {
	assert.Equal(t, "CPF [CPF]", Anonymize("CPF 123.456.789-01"))
	assert.Equal(t, "CPF [CPF]", Anonymize("CPF 12345678901"))
}

func TestAnonymizeDateBeforeDigitGroups(t *testing.T) {
	// The ISO date must become [DATA], not be consumed by phone or CPF
	// patterns running later.
	out := Anonymize("exam on 2024-03-15 and 15/03/2024")
	assert.Equal(t, "exam on [DATA] and [DATA]", out)
}

func TestAnonymizeCombined(t *testing.T) {
	out := Anonymize("Patient seen 2024-03-15, ID: 4421, contact a@b.com")

	assert.Contains(t, out, "[DATA]")
	assert.Contains(t, out, "[PACIENTE_ID]")
	assert.Contains(t, out, "[EMAIL]")
	assert.NotContains(t, out, "4421")
	assert.NotContains(t, out, "2024")
	assert.NotContains(t, out, "@")
}

func TestAnonymizePassthrough(t *testing.T) {
	assert.Equal(t, "", Anonymize(""))
	clean := "Mitochondria play a role in apoptosis."
	assert.Equal(t, clean, Anonymize(clean))
}

func TestAnonymizeBatch(t *testing.T) {
	out := AnonymizeBatch([]string{"ID: 1234", "no pii here"})
	assert.Equal(t, []string{"ID: [PACIENTE_ID]", "no pii here"}, out)
}
