// Package device runs commands against one transceiver over one transport.
//
// A Device couples a Class (the model's command table, parameter schema, supported
// transports and frame delimiter) with a transport. Open starts a reader that splits
// the transport's byte stream into frames and multicasts them. Invoke is the single
// entry point for every command:
//
//  1. fail fast with ErrDeviceNotOpen when the device is closed
//  2. resolve the command (ErrUnknownCommand, *NotImplementedError)
//  3. validate parameters (*command.ValidationError); the encoder never sees bad input
//  4. acquire the FIFO Gate, released on every path
//  5. write (set), or subscribe to frames, write and wait for the first match (get),
//     or run the command's Exec body
//  6. publish the outcome to the device log
//
// Calls rejected at steps 1 to 3 are published to the device log too.
//
// Get-commands fail with *TimeoutError when no matching frame arrives within the
// response timeout (WithResponseTimeout, or CallTimeout per call). Set-commands resolve
// as soon as the transport accepts the write.
//
// Frames hands out a drop-on-full view of the frame stream. Responses to get-commands
// travel on a separate lossless stream, so a stalled Frames subscriber never delays them.
package device
