package ldapconn_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ldapwire/ldapconn"
	"github.com/stretchr/testify/require"
)

// fakeServer plays the server side of a Conn over a loopback TCP
// connection (see dialOverPipe): it reads
// one LDAPMessage at a time and hands it to a caller-supplied handler,
// which returns the protocolOp to send back (or nil to send nothing,
// e.g. for an unbind or an abandoned operation).
type fakeServer struct {
	t    *testing.T
	conn net.Conn
}

func newFakeServer(t *testing.T, conn net.Conn) *fakeServer {
	return &fakeServer{t: t, conn: conn}
}

func (s *fakeServer) serveOne(respond func(msg *ldapconn.Message) *ldapconn.BerRawElement) {
	msg, err := ldapconn.ReadLDAPMessage(s.conn)
	require.NoError(s.t, err)
	op := respond(msg)
	if op == nil {
		return
	}
	reply := &ldapconn.Message{MessageID: msg.MessageID, ProtocolOp: *op}
	_, err = s.conn.Write(reply.EncodeWithHeader())
	require.NoError(s.t, err)
}

// dialOverPipe starts a loopback listener and dials it with Conn, since
// Dial owns the real TCP handshake; the "server" half returned is the
// accepted net.Conn a fake LDAP server drives directly.
func dialOverPipe(t *testing.T) (*ldapconn.Conn, net.Conn) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	conn, err := ldapconn.Dial(context.Background(), ln.Addr().String(), ldapconn.DialOptions{
		Deadline: 2 * time.Second,
	})
	require.NoError(t, err)

	return conn, <-accepted
}

func TestConnBindAddDeleteEndToEnd(t *testing.T) {
	conn, serverSide := dialOverPipe(t)
	defer serverSide.Close()
	srv := newFakeServer(t, serverSide)

	go srv.serveOne(func(msg *ldapconn.Message) *ldapconn.BerRawElement {
		req, err := ldapconn.GetBindRequest(msg.ProtocolOp.Data)
		require.NoError(t, err)
		require.Equal(t, "cn=admin,dc=example,dc=com", req.Name)
		res := &ldapconn.BindResult{Result: ldapconn.Result{ResultCode: ldapconn.ResultSuccess}}
		return &ldapconn.BerRawElement{Type: ldapconn.TypeBindResponseOp, Data: res.Encode()}
	})
	bindRes, err := conn.Bind(context.Background(), ldapconn.NewSimpleBindRequest("cn=admin,dc=example,dc=com", "secret"))
	require.NoError(t, err)
	require.Equal(t, ldapconn.ResultSuccess, bindRes.ResultCode)

	go srv.serveOne(func(msg *ldapconn.Message) *ldapconn.BerRawElement {
		req, err := ldapconn.GetAddRequest(msg.ProtocolOp.Data)
		require.NoError(t, err)
		require.Equal(t, "cn=alice,dc=example,dc=com", req.Entry)
		res := &ldapconn.Result{ResultCode: ldapconn.ResultSuccess}
		return &ldapconn.BerRawElement{Type: ldapconn.TypeAddResponseOp, Data: res.Encode()}
	})
	addReq := &ldapconn.AddRequest{
		Entry:      "cn=alice,dc=example,dc=com",
		Attributes: []ldapconn.Attribute{{Description: "objectClass", Values: []string{"inetOrgPerson"}}},
	}
	addRes, err := conn.Add(context.Background(), addReq)
	require.NoError(t, err)
	require.True(t, addRes.ResultCode.IsSuccess())

	go srv.serveOne(func(msg *ldapconn.Message) *ldapconn.BerRawElement {
		req, err := ldapconn.GetDeleteRequest(msg.ProtocolOp.Data)
		require.NoError(t, err)
		require.Equal(t, "cn=alice,dc=example,dc=com", req.Entry)
		res := &ldapconn.Result{ResultCode: ldapconn.ResultSuccess}
		return &ldapconn.BerRawElement{Type: ldapconn.TypeDeleteResponseOp, Data: res.Encode()}
	})
	delRes, err := conn.Delete(context.Background(), ldapconn.NewDeleteRequest("cn=alice,dc=example,dc=com"))
	require.NoError(t, err)
	require.True(t, delRes.ResultCode.IsSuccess())

	go srv.serveOne(func(msg *ldapconn.Message) *ldapconn.BerRawElement {
		require.Equal(t, ldapconn.TypeUnbindRequestOp, msg.ProtocolOp.Type)
		return nil
	})
	require.NoError(t, conn.Close())
}

func TestConnSearchStreamsEntries(t *testing.T) {
	conn, serverSide := dialOverPipe(t)
	defer serverSide.Close()
	srv := newFakeServer(t, serverSide)

	go func() {
		msg, err := ldapconn.ReadLDAPMessage(serverSide)
		require.NoError(t, err)
		req, err := ldapconn.GetSearchRequest(msg.ProtocolOp.Data)
		require.NoError(t, err)
		require.Equal(t, "dc=example,dc=com", req.BaseObject)

		entry := &ldapconn.SearchResultEntry{
			ObjectName: "cn=alice,dc=example,dc=com",
			Attributes: []ldapconn.Attribute{{Description: "cn", Values: []string{"alice"}}},
		}
		m1 := &ldapconn.Message{MessageID: msg.MessageID, ProtocolOp: ldapconn.BerRawElement{Type: ldapconn.TypeSearchResultEntryOp, Data: entry.Encode()}}
		_, err = serverSide.Write(m1.EncodeWithHeader())
		require.NoError(t, err)

		done := &ldapconn.Result{ResultCode: ldapconn.ResultSuccess}
		m2 := &ldapconn.Message{MessageID: msg.MessageID, ProtocolOp: ldapconn.BerRawElement{Type: ldapconn.TypeSearchResultDoneOp, Data: done.Encode()}}
		_, err = serverSide.Write(m2.EncodeWithHeader())
		require.NoError(t, err)
	}()

	handle, err := conn.Search(context.Background(), ldapconn.NewSearchRequest(
		"dc=example,dc=com", ldapconn.SearchScopeWholeSubtree, ldapconn.NewPresenceFilter("objectClass"), []string{"cn"}))
	require.NoError(t, err)

	var entries []*ldapconn.SearchResultEntry
	for e := range handle.Entries {
		entries = append(entries, e)
	}
	require.Len(t, entries, 1)
	require.Equal(t, "cn=alice,dc=example,dc=com", entries[0].ObjectName)

	res, err := handle.Wait()
	require.NoError(t, err)
	require.Equal(t, ldapconn.ResultSuccess, res.ResultCode)

	go srv.serveOne(func(msg *ldapconn.Message) *ldapconn.BerRawElement { return nil })
	require.NoError(t, conn.Close())
}

func TestConnCompareModifyModifyDN(t *testing.T) {
	conn, serverSide := dialOverPipe(t)
	defer serverSide.Close()
	srv := newFakeServer(t, serverSide)

	go srv.serveOne(func(msg *ldapconn.Message) *ldapconn.BerRawElement {
		req, err := ldapconn.GetCompareRequest(msg.ProtocolOp.Data)
		require.NoError(t, err)
		require.Equal(t, "mail", req.Attribute)
		res := &ldapconn.Result{ResultCode: ldapconn.LDAPResultCompareTrue}
		return &ldapconn.BerRawElement{Type: ldapconn.TypeCompareResponseOp, Data: res.Encode()}
	})
	cmpRes, err := conn.Compare(context.Background(), ldapconn.NewCompareRequest("cn=alice,dc=example,dc=com", "mail", "alice@example.com"))
	require.NoError(t, err)
	require.Equal(t, ldapconn.LDAPResultCompareTrue, cmpRes.ResultCode)

	go srv.serveOne(func(msg *ldapconn.Message) *ldapconn.BerRawElement {
		req, err := ldapconn.GetModifyRequest(msg.ProtocolOp.Data)
		require.NoError(t, err)
		require.Len(t, req.Changes, 1)
		res := &ldapconn.Result{ResultCode: ldapconn.ResultSuccess}
		return &ldapconn.BerRawElement{Type: ldapconn.TypeModifyResponseOp, Data: res.Encode()}
	})
	modRes, err := conn.Modify(context.Background(), ldapconn.NewModifyRequest("cn=alice,dc=example,dc=com").Replace("mail", "alice2@example.com"))
	require.NoError(t, err)
	require.True(t, modRes.ResultCode.IsSuccess())

	go srv.serveOne(func(msg *ldapconn.Message) *ldapconn.BerRawElement {
		req, err := ldapconn.GetModifyDNRequest(msg.ProtocolOp.Data)
		require.NoError(t, err)
		require.Equal(t, "cn=bob", req.NewRDN)
		res := &ldapconn.Result{ResultCode: ldapconn.ResultSuccess}
		return &ldapconn.BerRawElement{Type: ldapconn.TypeModifyDNResponseOp, Data: res.Encode()}
	})
	mdnRes, err := conn.ModifyDN(context.Background(), ldapconn.NewModifyDNRequest("cn=alice,dc=example,dc=com", "cn=bob", true))
	require.NoError(t, err)
	require.True(t, mdnRes.ResultCode.IsSuccess())

	go srv.serveOne(func(msg *ldapconn.Message) *ldapconn.BerRawElement { return nil })
	require.NoError(t, conn.Close())
}

func TestConnExtendedPasswordModify(t *testing.T) {
	conn, serverSide := dialOverPipe(t)
	defer serverSide.Close()
	srv := newFakeServer(t, serverSide)

	go srv.serveOne(func(msg *ldapconn.Message) *ldapconn.BerRawElement {
		req, err := ldapconn.GetExtendedRequest(msg.ProtocolOp.Data)
		require.NoError(t, err)
		require.Equal(t, ldapconn.OIDPasswordModify, req.Name)
		res := &ldapconn.ExtendedResult{Result: ldapconn.Result{ResultCode: ldapconn.ResultSuccess}}
		return &ldapconn.BerRawElement{Type: ldapconn.TypeExtendedResponseOp, Data: res.Encode()}
	})
	extRes, err := conn.Extended(context.Background(), ldapconn.NewPasswordModifyRequest("cn=alice,dc=example,dc=com", "", "newpass"))
	require.NoError(t, err)
	require.True(t, extRes.ResultCode.IsSuccess())

	go srv.serveOne(func(msg *ldapconn.Message) *ldapconn.BerRawElement { return nil })
	require.NoError(t, conn.Close())
}

func TestConnAbandonFailsLocallyWithoutServerResponse(t *testing.T) {
	conn, serverSide := dialOverPipe(t)
	defer serverSide.Close()

	handle, err := conn.Search(context.Background(), ldapconn.NewSearchRequest(
		"dc=example,dc=com", ldapconn.SearchScopeWholeSubtree, nil, nil))
	require.NoError(t, err)

	// Drain the search request bytes off the wire before abandoning it;
	// the server never responds, simulating a slow or hung operation.
	searchMsg, err := ldapconn.ReadLDAPMessage(serverSide)
	require.NoError(t, err)

	require.NoError(t, conn.Abandon(searchMsg.MessageID))

	abandonMsg, err := ldapconn.ReadLDAPMessage(serverSide)
	require.NoError(t, err)
	require.Equal(t, ldapconn.TypeAbandonRequestOp, abandonMsg.ProtocolOp.Type)
	abReq, err := ldapconn.GetAbandonRequest(abandonMsg.ProtocolOp.Data)
	require.NoError(t, err)
	require.Equal(t, searchMsg.MessageID, abReq.MessageID)

	_, err = handle.Wait()
	require.ErrorIs(t, err, ldapconn.ErrAbandoned)

	go func() {
		msg, err := ldapconn.ReadLDAPMessage(serverSide)
		require.NoError(t, err)
		require.Equal(t, ldapconn.TypeUnbindRequestOp, msg.ProtocolOp.Type)
	}()
	require.NoError(t, conn.Close())
}
