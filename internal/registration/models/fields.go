package models

// FieldID names one input of the registration form.
type FieldID string

const (
	FieldFullName        FieldID = "fullName"
	FieldEmail           FieldID = "email"
	FieldPhone           FieldID = "phone"
	FieldBirthDate       FieldID = "birthDate"
	FieldGender          FieldID = "gender"
	FieldAddress         FieldID = "address"
	FieldCity            FieldID = "city"
	FieldPassword        FieldID = "password"
	FieldConfirmPassword FieldID = "confirmPassword"
	FieldTerms           FieldID = "terms"
	FieldPhoto           FieldID = "photo"
)

// FieldKind describes how a field is entered.
type FieldKind string

const (
	KindText            FieldKind = "text"
	KindEmail           FieldKind = "email"
	KindPhone           FieldKind = "phone"
	KindDate            FieldKind = "date"
	KindChoice          FieldKind = "choice"
	KindPassword        FieldKind = "password"
	KindPasswordConfirm FieldKind = "passwordConfirm"
	KindCheckbox        FieldKind = "checkbox"
	KindFile            FieldKind = "file"
)

// FieldSpec is the immutable identity of one form field and its error slot.
type FieldSpec struct {
	ID             FieldID   `json:"id"`
	ErrorID        string    `json:"error_id"`
	Kind           FieldKind `json:"kind"`
	DefaultMessage string    `json:"default_message"`
}

// Default error texts.
const (
	MsgFullNameRequired = "Full name is required"
	MsgEmailInvalid     = "Enter a valid email address"
	MsgPhoneInvalid     = "Phone must start with 08 and contain 10-13 digits"
	MsgBirthDateMissing = "Birth date must be filled"
	MsgMinimumAge       = "Minimum age is 17 years"
	MsgGenderRequired   = "Select a gender"
	MsgAddressRequired  = "Address is required"
	MsgCityRequired     = "Select a city"
	MsgPasswordTooShort = "Password must be at least 8 characters"
	MsgPasswordMismatch = "Passwords do not match"
	MsgTermsRequired    = "You must accept the terms and conditions"
	MsgFileTooLarge     = "File exceeds the 5MB maximum"
)

// catalog is in display order. The photo slot comes last; it has no field
// validator and is judged by the upload guard instead.
var catalog = []FieldSpec{
	{ID: FieldFullName, ErrorID: "fullNameError", Kind: KindText, DefaultMessage: MsgFullNameRequired},
	{ID: FieldEmail, ErrorID: "emailError", Kind: KindEmail, DefaultMessage: MsgEmailInvalid},
	{ID: FieldPhone, ErrorID: "phoneError", Kind: KindPhone, DefaultMessage: MsgPhoneInvalid},
	{ID: FieldBirthDate, ErrorID: "birthDateError", Kind: KindDate, DefaultMessage: MsgBirthDateMissing},
	{ID: FieldGender, ErrorID: "genderError", Kind: KindChoice, DefaultMessage: MsgGenderRequired},
	{ID: FieldAddress, ErrorID: "addressError", Kind: KindText, DefaultMessage: MsgAddressRequired},
	{ID: FieldCity, ErrorID: "cityError", Kind: KindChoice, DefaultMessage: MsgCityRequired},
	{ID: FieldPassword, ErrorID: "passwordError", Kind: KindPassword, DefaultMessage: MsgPasswordTooShort},
	{ID: FieldConfirmPassword, ErrorID: "confirmPasswordError", Kind: KindPasswordConfirm, DefaultMessage: MsgPasswordMismatch},
	{ID: FieldTerms, ErrorID: "termsError", Kind: KindCheckbox, DefaultMessage: MsgTermsRequired},
	{ID: FieldPhoto, ErrorID: "photoError", Kind: KindFile, DefaultMessage: MsgFileTooLarge},
}

var byID = func() map[FieldID]FieldSpec {
	m := make(map[FieldID]FieldSpec, len(catalog))
	for _, spec := range catalog {
		m[spec.ID] = spec
	}
	return m
}()

// Fields returns every field spec in display order, photo included.
func Fields() []FieldSpec {
	out := make([]FieldSpec, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the spec for id.
func Lookup(id FieldID) (FieldSpec, bool) {
	spec, ok := byID[id]
	return spec, ok
}

// IsSecret reports whether values of the field must not be echoed in logs.
func (s FieldSpec) IsSecret() bool {
	return s.Kind == KindPassword || s.Kind == KindPasswordConfirm
}
