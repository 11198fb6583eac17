package fix

// Tag is a FIX field number
type Tag int

// Field tags used by the trader
const (
	TagAccount           Tag = 1
	TagAvgPx             Tag = 6
	TagClOrdID           Tag = 11
	TagCumQty            Tag = 14
	TagCurrency          Tag = 15
	TagMsgSeqNum         Tag = 34
	TagMsgType           Tag = 35
	TagOrderQty          Tag = 38
	TagOrdStatus         Tag = 39
	TagOrdType           Tag = 40
	TagOrigClOrdID       Tag = 41
	TagPrice             Tag = 44
	TagSenderSubID       Tag = 50
	TagSendingTime       Tag = 52
	TagSide              Tag = 54
	TagSymbol            Tag = 55
	TagText              Tag = 58
	TagTimeInForce       Tag = 59
	TagTransactTime      Tag = 60
	TagSecurityType      Tag = 167
	TagMaturityMonthYear Tag = 200
	TagCxlRejReason      Tag = 102
	TagUsername          Tag = 553
	TagPassword          Tag = 554
	TagPosReqType        Tag = 724
	TagPosReqID          Tag = 710
	TagLongQty           Tag = 704
	TagShortQty          Tag = 705
	TagPosAmt            Tag = 708
	TagTotalNumPosReps   Tag = 727
	TagPosReqResult      Tag = 728
	TagCashOutstanding   Tag = 901
	TagCollInquiryID     Tag = 909
	TagClearingBusDate   Tag = 715
)

// MsgType values
const (
	MsgTypeHeartbeat              = "0"
	MsgTypeTestRequest            = "1"
	MsgTypeResendRequest          = "2"
	MsgTypeReject                 = "3"
	MsgTypeSequenceReset          = "4"
	MsgTypeLogout                 = "5"
	MsgTypeExecutionReport        = "8"
	MsgTypeOrderCancelReject      = "9"
	MsgTypeLogon                  = "A"
	MsgTypeNewOrderSingle         = "D"
	MsgTypeOrderCancelRequest     = "F"
	MsgTypeRequestForPositions    = "AN"
	MsgTypeRequestForPositionsAck = "AO"
	MsgTypePositionReport         = "AP"
	MsgTypeCollateralReport       = "BA"
	MsgTypeCollateralInquiry      = "BB"
	MsgTypeCollateralInquiryAck   = "BG"
)

// IsAdmin reports whether msgType is a session-level message
func IsAdmin(msgType string) bool {
	switch msgType {
	case MsgTypeHeartbeat, MsgTypeTestRequest, MsgTypeResendRequest,
		MsgTypeReject, MsgTypeSequenceReset, MsgTypeLogout, MsgTypeLogon:
		return true
	}
	return false
}
