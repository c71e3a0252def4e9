package redishandler

import "strings"

const pollsIndexKey = "polls"

func userKey(id string) string      { return "user:" + id }
func userVotesKey(id string) string { return "user:" + id + ":votes" }
func userPollsKey(id string) string { return "user:" + id + ":polls" }

func usernameKey(username string) string {
	return "user:username:" + strings.ToLower(username)
}

func emailKey(email string) string {
	return "user:email:" + strings.ToLower(email)
}

func pollKey(id string) string        { return "poll:" + id }
func pollOptionsKey(id string) string { return "poll:" + id + ":options" }
func pollVotesKey(id string) string   { return "poll:" + id + ":votes" }
