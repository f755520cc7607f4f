package domain

// The CMA-CGM group multiplexes several commercial brands behind one
// upstream API, identifying each by a short internal numeric code rather
// than its SCAC. This is the "cyclic carrier-code ↔ SCAC map" of
// spec.md §9, flattened into two lookup tables built at init time instead
// of kept as a pair of mutually-referential dicts.
var cmaCodeToSCAC = map[string]CarrierCode{
	"0001": CarrierCMDU,
	"0002": CarrierANNU,
	"0011": CarrierCHNL,
	"0015": CarrierAPLU,
}

var cmaSCACToCode map[CarrierCode]string

func init() {
	cmaSCACToCode = make(map[CarrierCode]string, len(cmaCodeToSCAC))
	for code, scac := range cmaCodeToSCAC {
		cmaSCACToCode[scac] = code
	}
}

// CMASCACForCode returns the SCAC for a CMA-group internal numeric code.
func CMASCACForCode(code string) (CarrierCode, bool) {
	scac, ok := cmaCodeToSCAC[code]
	return scac, ok
}

// CMACodeForSCAC returns the CMA-group internal numeric code for a SCAC.
func CMACodeForSCAC(scac CarrierCode) (string, bool) {
	code, ok := cmaSCACToCode[scac]
	return code, ok
}
