package event

// descriptions maps the two letter SIA event codes reported by Galaxy panels
// to display text. The table follows SIA DC-03; codes a Flex panel is not
// known to emit are still listed so forwarded events stay readable.
var descriptions = map[string]string{
	"AR": "AC Power Restored",
	"AT": "AC Trouble (Mains Failure)",
	"BA": "Burglary Alarm",
	"BB": "Burglary Bypass",
	"BC": "Burglary Cancel (User Reset)",
	"BJ": "Burglary Trouble Restore",
	"BR": "Burglary Restore",
	"BT": "Burglary Trouble",
	"BU": "Burglary Unbypass",
	"BV": "Burglary Verified",
	"BX": "Burglary Test",
	"CA": "Automatic Closing",
	"CE": "Closing Extend",
	"CF": "Forced Closing",
	"CG": "Close Area",
	"CI": "Fail to Close",
	"CL": "Closing Report (User Armed)",
	"CP": "Automatic Closing Report",
	"CR": "Recent Closing",
	"EA": "Exit Alarm",
	"ER": "Expander Restore",
	"ET": "Expander Trouble",
	"FA": "Fire Alarm",
	"FB": "Fire Bypass",
	"FR": "Fire Restore",
	"FT": "Fire Trouble",
	"HA": "Holdup Alarm",
	"HR": "Holdup Restore",
	"JL": "Log Threshold Reached",
	"JO": "Log Overflow",
	"JT": "Time Changed",
	"KA": "Heat Alarm",
	"KR": "Heat Restore",
	"LB": "Local Program Begin",
	"LR": "Phone Line Restore",
	"LT": "Phone Line Trouble",
	"LX": "Local Program End",
	"MA": "Medical Alarm",
	"OA": "Automatic Opening",
	"OG": "Open Area",
	"OP": "Opening Report (User Disarmed)",
	"OR": "Opening Restore / Alarm Restore",
	"PA": "Panic Alarm",
	"PR": "Panic Restore",
	"RB": "Remote Program Begin",
	"RP": "Automatic Test",
	"RR": "Power Up",
	"RS": "Remote Program Success",
	"RX": "Manual Test",
	"TA": "Tamper Alarm",
	"TE": "Test End",
	"TR": "Tamper Restore",
	"TS": "Test Start",
	"WA": "Water Alarm",
	"WR": "Water Restore",
	"XR": "Battery Restored",
	"XT": "Battery Trouble",
	"YR": "System Battery Restore",
	"YT": "System Battery Trouble",
	"ZA": "Freeze Alarm",
	"ZR": "Freeze Restore",
}

// Describe returns the display text for a SIA event code, or "Unknown" for
// codes outside the table.
func Describe(code string) string {
	if d, ok := descriptions[code]; ok {
		return d
	}
	return "Unknown"
}
