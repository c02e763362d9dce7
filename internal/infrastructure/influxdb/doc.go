// Package influxdb writes record store operation metrics to InfluxDB.
//
// Every create, upsert, query and delete is written as one point on the
// "store_operations" measurement:
//
//	store_operations,op=upsert,status=ok,table=users duration_ms=1.8,rows=12i
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	m, err := orm.Open(ctx, orm.Options{..., Recorder: client})
//
// # Error Handling
//
// Writes are non-blocking; batch failures are delivered to the callback
// set with SetOnError. Connection and health check errors are returned
// directly.
package influxdb
