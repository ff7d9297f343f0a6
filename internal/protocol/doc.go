// Package protocol defines the JSON messages exchanged with WebSocket
// subscribers.
//
// Every message is a single JSON object with a "type" discriminator.
// Server messages are encoded once with Encode and the resulting text is
// what travels through the broadcast hub. Client messages are decoded with
// DecodeClientMessage; types this server does not know decode to Unknown.
//
// Server → client:
//
//	{"type":"gamepad_connected","device":"Pad1","state":{"buttons":{"0":false,...},"axes":{"left_x":0,...}}}
//	{"type":"button","device":"Pad1","button":6,"pressed":true,"name":"LT","value":0.7}
//	{"type":"axis","device":"Pad1","axis":"left_x","value":0.6}
//	{"type":"tokens","blockIndex":2,"text":"...","tokens":[...],"tokenSource":"mecab","mecabAvailable":true,"yomitanApiAvailable":false}
//
// Client → server:
//
//	{"type":"ping"}
//	{"type":"get_state"}
//	{"type":"tokenize","text":"...","blockIndex":2}
//	{"type":"get_furigana","text":"...","lineIndex":0,"requestId":"r-17"}
package protocol
