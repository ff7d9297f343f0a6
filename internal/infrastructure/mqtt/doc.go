// Package mqtt publishes the gamepad broadcast stream to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Event publishing to {prefix}/event/{type}
//   - Retained online/offline status with a Last Will
//
// # Topics
//
//	gsm/input/event/button      every button edge
//	gsm/input/event/axis        every axis update and hold repeat
//	gsm/input/event/gamepad_connected
//	gsm/input/system/status     retained {"status":"online"|"offline",...}
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishEvent("button", []byte(msg))
package mqtt
