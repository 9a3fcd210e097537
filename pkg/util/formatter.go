package util

import "fmt"

// FormatMagnitudePhase renders a phasor quantity as used in power-flow and
// RMS result tables: "V(bus1)=    1.02<  -3.1deg".
func FormatMagnitudePhase(name string, value, phase float64) string {
	var magStr string
	if value >= 1000 {
		magStr = fmt.Sprintf("%8.2e", value) // e.g., "1.00e+03"
	} else if value < 0.001 {
		magStr = fmt.Sprintf("%8.2e", value) // e.g., "5.43e-05"
	} else {
		magStr = fmt.Sprintf("%8.3g", value) // e.g., "     732" for 732.5
	}
	phaseStr := fmt.Sprintf("%6.1f", phase) // e.g., "  90.0"
	return fmt.Sprintf("%s=%s<%sdeg", name, magStr, phaseStr)
}

func FormatMagnitude(value float64) string {
	if value >= 1000 || (value < 0.001 && value != 0) {
		return fmt.Sprintf("%8.2e", value) // "1.00e+03" or "5.43e-05"
	}
	return fmt.Sprintf("%8.3g", value) // "     732" for 732.5
}

func FormatPhase(value float64) string {
	return fmt.Sprintf("%6.1f", value) // "  90.0"
}

// FormatMW renders an active/reactive power quantity in MW or MVAr.
func FormatMW(value float64, unit string) string {
	return fmt.Sprintf("%9.3f %s", value, unit)
}

// FormatLoadingPct renders a branch loading fraction as a percentage of
// its rated (or contingency) capacity.
func FormatLoadingPct(loadingPU float64) string {
	return fmt.Sprintf("%6.1f%%", loadingPU*100)
}
