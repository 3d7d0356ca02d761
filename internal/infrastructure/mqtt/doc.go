// Package mqtt connects the hub to an MQTT broker.
//
// The hub publishes device events and accepts commands over MQTT:
//
//	lumenhub/device/{id}/presence        retained connected/disconnected
//	lumenhub/device/{id}/telemetry       servo angles from each heartbeat
//	lumenhub/device/{id}/command/result  outcome of every dispatch
//	lumenhub/command/{id}                inbound command, same body as HTTP
//	lumenhub/system/status               hub online/offline, also the LWT
//
// The prefix is configurable; Topics builds every name from it.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _ := topics.CommandDeviceID(topic)
//	        return handle(id, payload)
//	    })
//
// Paho reconnects automatically; tracked subscriptions are restored on
// every reconnect.
package mqtt
