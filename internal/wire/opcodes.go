// Package wire gives the rest of the decoder narrow, typed access to the
// protobuf-encoded payloads carried inside a demo's NET_*/SVC_* messages,
// without pulling in a generated message codec: the handful of numbered
// fields each payload needs are pulled directly with
// google.golang.org/protobuf/encoding/protowire, the same primitive layer a
// generated codec would itself be built on.
package wire

// NET_* and SVC_* opcodes, numbered exactly as the engine's message
// dispatch table assigns them. Opcodes not listed here are legal on the
// wire: the framer still surfaces them and the dispatcher skips them.
const (
	NetNOP               = 0
	NetDisconnect        = 1
	NetFile              = 2
	NetTick              = 4
	NetStringCmd         = 5
	NetSetConVar         = 6
	NetSignonState       = 7
	SvcServerInfo        = 8
	SvcSendTable         = 9
	SvcClassInfo         = 10
	SvcSetPause          = 11
	SvcCreateStringTable = 12
	SvcUpdateStringTable = 13
	SvcVoiceInit         = 14
	SvcVoiceData         = 15
	SvcPrint             = 16
	SvcSounds            = 17
	SvcSetView           = 18
	SvcFixAngle          = 19
	SvcCrosshairAngle    = 20
	SvcBSPDecal          = 21
	SvcUserMessage       = 23
	SvcGameEvent         = 25
	SvcPacketEntities    = 26
	SvcTempEntities      = 27
	SvcPrefetch          = 28
	SvcMenu              = 29
	SvcGameEventList     = 30
	SvcGetCvarValue      = 31
)

// OpcodeName returns a readable label for a NET_*/SVC_* opcode, falling
// back to "unknown" for opcodes this parser doesn't bind a
// handler to (it still must frame past their payload correctly).
func OpcodeName(op uint32) string {
	switch op {
	case NetNOP:
		return "net_NOP"
	case NetDisconnect:
		return "net_Disconnect"
	case NetFile:
		return "net_File"
	case NetTick:
		return "net_Tick"
	case NetStringCmd:
		return "net_StringCmd"
	case NetSetConVar:
		return "net_SetConVar"
	case NetSignonState:
		return "net_SignonState"
	case SvcServerInfo:
		return "svc_ServerInfo"
	case SvcSendTable:
		return "svc_SendTable"
	case SvcClassInfo:
		return "svc_ClassInfo"
	case SvcSetPause:
		return "svc_SetPause"
	case SvcCreateStringTable:
		return "svc_CreateStringTable"
	case SvcUpdateStringTable:
		return "svc_UpdateStringTable"
	case SvcVoiceInit:
		return "svc_VoiceInit"
	case SvcVoiceData:
		return "svc_VoiceData"
	case SvcPrint:
		return "svc_Print"
	case SvcSounds:
		return "svc_Sounds"
	case SvcSetView:
		return "svc_SetView"
	case SvcFixAngle:
		return "svc_FixAngle"
	case SvcCrosshairAngle:
		return "svc_CrosshairAngle"
	case SvcBSPDecal:
		return "svc_BSPDecal"
	case SvcUserMessage:
		return "svc_UserMessage"
	case SvcGameEvent:
		return "svc_GameEvent"
	case SvcPacketEntities:
		return "svc_PacketEntities"
	case SvcTempEntities:
		return "svc_TempEntities"
	case SvcPrefetch:
		return "svc_Prefetch"
	case SvcMenu:
		return "svc_Menu"
	case SvcGameEventList:
		return "svc_GameEventList"
	case SvcGetCvarValue:
		return "svc_GetCvarValue"
	default:
		return "unknown"
	}
}
