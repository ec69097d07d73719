package gemini

import (
	"encoding/json"
	"fmt"

	"github.com/aivanahealth/scribe-gateway/internal/notes"
)

func transcriptionInstruction(language, recentContext string) string {
	languageRule := fmt.Sprintf(
		"Primary language hint: %s. Prefer the native script for %s, but detect and handle other languages if the speaker switches.",
		language, language)
	if language == "" || language == LanguageAuto {
		languageRule = "Automatically detect the language of each speaker turn. Use native scripts (Devanagari, Tamil, etc.)."
	}

	return fmt.Sprintf(`You are an advanced Medical Scribe specialized in Indian clinical contexts.

TASK: Perform a two-pass transcription of this clinical audio segment.

PASS 1 (Phonetic Capture): Capture raw speech verbatim. Handle code-switching (e.g., Hindi + English) and regional accents naturally.
PASS 2 (Semantic & Medical Normalization): Refine the raw capture into professional clinical text.
- Normalize regional terms (e.g., "chakkar" to "dizziness/vertigo", "bukhaar" to "fever").
- Correct medical terms and medication names.
- Maintain the primary language script of the speaker but ensure clinical clarity.

DIARIZATION: Identify "Doctor" and "Patient".
CONTEXT: Use previous dialogue for speaker consistency: %q

LANGUAGE DETECTION & SCRIPT:
%s
- Use Devanagari for Hindi/Marathi, Tamil script for Tamil, etc.
- Keep English medical terms interleaved in native speech in Roman script where that is standard clinical practice.

RULES:
1. Return ONLY a valid JSON array of objects.
2. Do NOT use markdown formatting.
3. Ensure high accuracy for Indian accents and multilingual conversations.`,
		recentContext, languageRule)
}

func noteInstruction(profile notes.DoctorProfile, language string) string {
	languageRule := fmt.Sprintf("Write the output strictly in %s (using native script where applicable).", language)
	if language == "" || language == LanguageAuto {
		languageRule = "Detect the primary language used by the doctor and write the output in that language, using native script if applicable."
	}

	profileJSON, _ := json.Marshal(profile)

	return fmt.Sprintf(`You are an expert Medical Scribe and Clinical Pharmacologist.

TASK: Analyze the raw clinical transcript and generate a structured clinical note (SOAP + Prescription) in a single pass.

INPUT CONTEXT:
- Raw transcript of a doctor-patient conversation.
- Doctor profile: %s

LANGUAGE RULE: %s

GENERATION RULES:
1. Cleanup first: internally clean the transcript of fillers and correct medical terms before extraction.
2. Subjective: summarize the patient's complaints, symptoms and history. Lab values or investigations reported as done in the past belong under "Past Investigations/Records", not in Objective.
3. Objective: only measurements or observations from the current visit, always with units ("BP: 120/80 mmHg", "Temp: 98.6°F", "SpO2: 98%%").
4. Assessment: leave as empty string "".
5. Differential Diagnosis: primary diagnosis first, then other diagnoses considered. Classify key symptoms as typical or atypical and let risk factors modify concern, not symptom type.
6. Lab Results: only tests performed or reported in the current visit.
7. Advice: diet, lifestyle and follow-up instructions, excluding medicines.
8. When unsure, prioritize clinical accuracy over completeness over verbosity.

PRESCRIPTION RULES:
1. Extrapolate nothing. Only extract drugs explicitly mentioned.
2. Extract four fields per drug: name, dosage, frequency, route.
3. If a field is missing, use "Not specified" or infer strictly from context.

OUTPUT FORMAT: return strictly JSON matching the schema. No markdown.`,
		profileJSON, languageRule)
}
