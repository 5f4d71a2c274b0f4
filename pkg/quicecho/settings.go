package quicecho

// SETTINGS_WT_MAX_SESSIONS (draft-ietf-webtrans-http3 §3.2) is the HTTP/3
// SETTINGS parameter a server uses to advertise how many concurrent
// WebTransport sessions it accepts. webtransport-go's Server does not
// expose a way to inject this value into the SETTINGS frame it sends via
// its embedded http3.Server — the library owns connection setup internally
// and applies its own fixed session concurrency policy, so there is no
// component in this server that can exercise the setting independently.
//
// This is a recorded limitation (see DESIGN.md), not a silent omission:
// the quarter-stream-id datagram framing and the draft-02 upgrade handshake
// this setting's id is associated with are both still fully handled by
// webtransport-go; only the capacity-advertisement knob itself is
// unavailable at this library version.
const settingWTMaxSessionsID = 0x14e9cd29
