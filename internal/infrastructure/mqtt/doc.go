// Package mqtt publishes record store change events over MQTT.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained online/offline status with a Last Will and Testament
//   - One ChangeEvent per committed write, on <prefix>/tables/<table>/<op>
//
// # Security Considerations
//
//   - Use TLS outside local development (cfg.Broker.TLS=true)
//   - Events carry table names and row counts only, never row data
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	changes := mqtt.NewChangePublisher(client, client.Topics(), client.QoS())
//	m, err := orm.Open(ctx, orm.Options{..., Notifier: changes})
//
// Consumers subscribe to Topics.AllTableChanges() and decode ChangeEvent.
package mqtt
