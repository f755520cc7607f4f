package domain

// CarrierCode is a SCAC (Standard Carrier Alpha Code), the closed set of
// 19 carriers this system is known to integrate (spec.md §6).
type CarrierCode string

const (
	CarrierMSCU CarrierCode = "MSCU"
	CarrierCMDU CarrierCode = "CMDU"
	CarrierANNU CarrierCode = "ANNU"
	CarrierAPLU CarrierCode = "APLU"
	CarrierCHNL CarrierCode = "CHNL"
	CarrierCSFU CarrierCode = "CSFU"
	CarrierSUDU CarrierCode = "SUDU"
	CarrierANRM CarrierCode = "ANRM"
	CarrierONEY CarrierCode = "ONEY"
	CarrierHDMU CarrierCode = "HDMU"
	CarrierZIMU CarrierCode = "ZIMU"
	CarrierMAEU CarrierCode = "MAEU"
	CarrierSEAU CarrierCode = "SEAU"
	CarrierSEJJ CarrierCode = "SEJJ"
	CarrierMCPU CarrierCode = "MCPU"
	CarrierMAEI CarrierCode = "MAEI"
	CarrierOOLU CarrierCode = "OOLU"
	CarrierCOSU CarrierCode = "COSU"
	CarrierHLCU CarrierCode = "HLCU"
)

var knownCarriers = map[CarrierCode]struct{}{
	CarrierMSCU: {}, CarrierCMDU: {}, CarrierANNU: {}, CarrierAPLU: {},
	CarrierCHNL: {}, CarrierCSFU: {}, CarrierSUDU: {}, CarrierANRM: {},
	CarrierONEY: {}, CarrierHDMU: {}, CarrierZIMU: {}, CarrierMAEU: {},
	CarrierSEAU: {}, CarrierSEJJ: {}, CarrierMCPU: {}, CarrierMAEI: {},
	CarrierOOLU: {}, CarrierCOSU: {}, CarrierHLCU: {},
}

// ParseCarrierCode validates s against the closed carrier set.
// SearchRequest.Validate applies the same set check to the carrier filter.
func ParseCarrierCode(s string) (CarrierCode, bool) {
	c := CarrierCode(s)
	_, ok := knownCarriers[c]
	return c, ok
}

// MaerskFamily is the SCACs sharing the Maersk streaming protocol
// (spec.md §6's family table), parameterizing one adapter instead of five.
var MaerskFamily = []CarrierCode{CarrierMAEU, CarrierSEAU, CarrierSEJJ, CarrierMCPU, CarrierMAEI}

// GenericFamily is the SCACs spec.md lists but does not special-case.
var GenericFamily = []CarrierCode{
	CarrierMSCU, CarrierCSFU, CarrierSUDU, CarrierANRM,
	CarrierONEY, CarrierOOLU, CarrierCOSU, CarrierHLCU,
}
