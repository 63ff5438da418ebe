package telemetry

// Column is a physical column label of the time-series store.
type Column string

// Unmatched marks a logical parameter with no physical column.
const Unmatched Column = ""

const (
	ColumnVoltAN       Column = "Volt AN"
	ColumnVoltBN       Column = "Volt BN"
	ColumnVoltCN       Column = "Volt CN"
	ColumnVoltLNAvg    Column = "Volt LN Avg"
	ColumnVoltAB       Column = "Volt AB"
	ColumnVoltBC       Column = "Volt BC"
	ColumnVoltCA       Column = "Volt CA"
	ColumnVoltLLAvg    Column = "Volt LL Avg"
	ColumnCurrentA     Column = "Current A"
	ColumnCurrentB     Column = "Current B"
	ColumnCurrentC     Column = "Current C"
	ColumnCurrentN     Column = "Current N"
	ColumnCurrentAvg   Column = "Current Avg"
	ColumnWattA        Column = "Watt A"
	ColumnWattB        Column = "Watt B"
	ColumnWattC        Column = "Watt C"
	ColumnWattTotal    Column = "Watt Total"
	ColumnVARTotal     Column = "VAR Total"
	ColumnVATotal      Column = "VA Total"
	ColumnPFTotal      Column = "PF Total"
	ColumnFrequency    Column = "Frequency"
	ColumnTHDVoltA     Column = "THD Volt A"
	ColumnTHDCurrentA  Column = "THD Current A"
	ColumnDemandW      Column = "Demand W"
	ColumnDemandVAR    Column = "Demand VAR"
	ColumnDemandVA     Column = "Demand VA"
	ColumnKWhImport    Column = "kWh Import"
	ColumnKWhExport    Column = "kWh Export"
	ColumnKWhTotal     Column = "kWh Total"
	ColumnKVARhImport  Column = "kVARh Import"
	ColumnKVARhExport  Column = "kVARh Export"
	ColumnKVAhTotal    Column = "kVAh Total"
	ColumnKWhOnPeak    Column = "kWh On Peak"
	ColumnKWhOffPeak   Column = "kWh Off Peak"
	ColumnKWhHoliday   Column = "kWh Holiday"
	ColumnDemandOnPeak Column = "Demand On Peak"
)

var knownColumns = []Column{
	ColumnVoltAN,
	ColumnVoltBN,
	ColumnVoltCN,
	ColumnVoltLNAvg,
	ColumnVoltAB,
	ColumnVoltBC,
	ColumnVoltCA,
	ColumnVoltLLAvg,
	ColumnCurrentA,
	ColumnCurrentB,
	ColumnCurrentC,
	ColumnCurrentN,
	ColumnCurrentAvg,
	ColumnWattA,
	ColumnWattB,
	ColumnWattC,
	ColumnWattTotal,
	ColumnVARTotal,
	ColumnVATotal,
	ColumnPFTotal,
	ColumnFrequency,
	ColumnTHDVoltA,
	ColumnTHDCurrentA,
	ColumnDemandW,
	ColumnDemandVAR,
	ColumnDemandVA,
	ColumnKWhImport,
	ColumnKWhExport,
	ColumnKWhTotal,
	ColumnKVARhImport,
	ColumnKVARhExport,
	ColumnKVAhTotal,
	ColumnKWhOnPeak,
	ColumnKWhOffPeak,
	ColumnKWhHoliday,
	ColumnDemandOnPeak,
}

var knownColumnSet = func() map[Column]struct{} {
	set := make(map[Column]struct{}, len(knownColumns))
	for _, column := range knownColumns {
		set[column] = struct{}{}
	}
	return set
}()

// KnownColumns returns the physical column catalog in display order.
func KnownColumns() []Column {
	out := make([]Column, len(knownColumns))
	copy(out, knownColumns)
	return out
}

// IsKnown reports whether the label belongs to the catalog.
func (c Column) IsKnown() bool {
	_, ok := knownColumnSet[c]
	return ok
}
