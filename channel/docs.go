// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
channel is a package that provides the secondary browsing contexts used while
an authorization request is in flight, plus the message transport that
carries the authorization server's redirect parameters back to the
dispatcher.

Primary types provided by the package:

* Interactive: opens a user facing window (see WindowOpener) and reports,
exactly once, when the user closed it without completing the flow.

* NonInteractive: loads the authorization endpoint in a hidden frame (see
FrameLoader) and reports, exactly once, when no further navigation happened
before the exponential timeout ceiling was reached.

* Relay: a MessageSource that fans redirect messages out to registered
handlers. The callback package publishes to a Relay.

* Scheduler: the delayed-callback primitive both channels are driven by.
*/
package channel
