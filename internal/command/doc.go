// Package command routes imperative commands to devices.
//
// A command goes over the device's live session when one exists. Only when
// the device has no session is a single HTTP request made to the device's
// own web server at its recorded address:
//
//	set_servo           POST http://{address}/api/servo{n}  {"angle":90}
//	set_led_color       POST http://{address}/api/led       {"type":"set_led_color","r":255,"g":0,"b":0}
//	set_led_brightness  POST http://{address}/api/led       {"type":"set_led_brightness","brightness":128}
//	clear_leds          POST http://{address}/api/led       {"type":"clear_leds"}
//
// A failed live send is not retried over HTTP. After a successful delivery
// the directory's cached servo and LED fields are updated.
package command
