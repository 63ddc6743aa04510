package main

import (
	"context"
	"fmt"

	"github.com/openbms-io/supervisor/internal/bacnet"
)

// ErrBACnetStackNotWired is returned by every unimplementedClient
// operation. The BACnet/IP protocol stack itself is an external
// collaborator the design treats as a library this repo calls, never
// implements — internal/bacnet's Client interface is the contract a
// real driver (e.g. a CGo binding to BACnet4Linux or a vendor SDK)
// satisfies. No such driver ships in this module; a production build
// swaps newUnimplementedClient out for one backed by a real library.
var ErrBACnetStackNotWired = fmt.Errorf("bacnet: no protocol driver wired into this build")

// unimplementedClient satisfies bacnet.Client so the reader pool can be
// constructed and exercised (connection bookkeeping, pooling strategy)
// without a real BACnet/IP stack present. Every I/O operation fails with
// ErrBACnetStackNotWired.
type unimplementedClient struct {
	connected bool
}

func newUnimplementedClient(bacnet.ReaderConfig) bacnet.Client {
	return &unimplementedClient{}
}

func (c *unimplementedClient) Connect(context.Context) error {
	c.connected = true
	return nil
}

func (c *unimplementedClient) Close() error {
	c.connected = false
	return nil
}

func (c *unimplementedClient) IsConnected() bool { return c.connected }

func (c *unimplementedClient) WhoIs(context.Context, string) ([]uint32, error) {
	return nil, ErrBACnetStackNotWired
}

func (c *unimplementedClient) ReadObjectList(context.Context, string, uint32) ([]bacnet.ObjectRef, error) {
	return nil, ErrBACnetStackNotWired
}

func (c *unimplementedClient) ReadPresentValue(context.Context, string, bacnet.ObjectRef) (any, error) {
	return nil, ErrBACnetStackNotWired
}

func (c *unimplementedClient) ReadProperties(context.Context, string, bacnet.ObjectRef, []bacnet.PropertyName) (bacnet.PropertyValues, error) {
	return nil, ErrBACnetStackNotWired
}

func (c *unimplementedClient) ReadMultiplePoints(context.Context, string, []bacnet.PointRequest) (map[string]bacnet.PropertyValues, error) {
	return nil, ErrBACnetStackNotWired
}

func (c *unimplementedClient) Write(context.Context, string) error {
	return ErrBACnetStackNotWired
}

func (c *unimplementedClient) WriteWithPriority(context.Context, string, bacnet.ObjectRef, any, int) error {
	return ErrBACnetStackNotWired
}
