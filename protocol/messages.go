package protocol

// Message types recognized on the Agent -> Central direction. The set is a
// closed enum: dispatcher.worker switches on these and drops anything else
// with a log line rather than growing a string-comparison chain ad hoc.
const (
	MsgRegister          = "REGISTER"
	MsgHeartbeat         = "HEARTBEAT"
	MsgRequestCharge     = "REQUEST_CHARGE"
	MsgQueryAvailableCPs = "QUERY_AVAILABLE_CPS"
	MsgSupplyUpdate      = "SUPPLY_UPDATE"
	MsgSupplyEnd         = "SUPPLY_END"
	MsgEndCharge         = "END_CHARGE"
	MsgFault             = "FAULT"
	MsgRecovery          = "RECOVERY"
	MsgHealthOK          = "HEALTH_OK"
	MsgHealthKO          = "HEALTH_KO"
)

// Registration kinds carried as REGISTER's second field.
const (
	RegisterCP      = "CP"
	RegisterDriver  = "DRIVER"
	RegisterMonitor = "MONITOR"
)

// Central -> Agent message types, built by the session manager and written
// through registry.Conn.Send.
const (
	MsgAcknowledge      = "ACKNOWLEDGE"
	MsgAuthorize        = "AUTHORIZE"
	MsgDeny             = "DENY"
	MsgAvailableCPs     = "AVAILABLE_CPS"
	MsgTicket           = "TICKET"
	MsgStopCommand      = "STOP_COMMAND"
	MsgResumeCommand    = "RESUME_COMMAND"
	MsgEndSupply        = "END_SUPPLY"
	MsgDriverStart      = "DRIVER_START"
	MsgDriverStop       = "DRIVER_STOP"
	MsgChargingComplete = "CHARGING_COMPLETE"
)

// Denial reasons used as DENY's third field.
const (
	ReasonCPNotFound           = "CP_NOT_FOUND"
	ReasonCPAlreadyInUse       = "CP_ALREADY_IN_USE"
	ReasonCPFaultEmergencyStop = "CP_FAULT_EMERGENCY_STOP"
)

// ReasonCPState builds the "CP_STATE_<state>" denial reason for a CP that is
// not in a state that accepts the requested transition.
func ReasonCPState(state string) string {
	return "CP_STATE_" + state
}
